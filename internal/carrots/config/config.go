package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"

	DefaultPageSize = 200
	MinPageSize     = 1
	MaxPageSize     = 500

	EnvProjectID          = "FIREBASE_PROJECT_ID"
	EnvServiceAccountJSON = "SERVICE_ACCOUNT_JSON"
	EnvDryRun             = "DRY_RUN"
	EnvPageSize           = "PAGE_SIZE"
)

// Config is validated once by LoadConfig and treated as read-only afterwards.
type Config struct {
	ProjectID      string
	ServiceAccount ServiceAccount
	DryRun         bool
	PageSize       int

	StoreBackend           string
	StoreTimeout           time.Duration
	MongoURI               string
	MongoDBName            string
	UsersCollection        string
	TransactionsCollection string

	LockRedisURL string
	LockTTL      time.Duration

	LogLevel string
}

// env mirrors the raw environment. Flags stay strings so they can be
// resolved leniently instead of failing on odd values.
type env struct {
	ProjectID          string `envconfig:"FIREBASE_PROJECT_ID" validate:"required_if=StoreBackend firestore"`
	ServiceAccountJSON string `envconfig:"SERVICE_ACCOUNT_JSON" validate:"required_if=StoreBackend firestore"`
	DryRun             string `envconfig:"DRY_RUN" default:"false"`
	PageSize           string `envconfig:"PAGE_SIZE" default:"200"`

	StoreBackend           string        `envconfig:"STORE_BACKEND" default:"firestore" validate:"oneof=firestore mongo"`
	StoreTimeout           time.Duration `envconfig:"STORE_TIMEOUT" default:"30s" validate:"gt=0"`
	MongoURI               string        `envconfig:"MONGO_URI" validate:"required_if=StoreBackend mongo"`
	MongoDBName            string        `envconfig:"MONGO_DB_NAME" default:"carrots" validate:"required"`
	UsersCollection        string        `envconfig:"COLLECTION_USERS" default:"users" validate:"required"`
	TransactionsCollection string        `envconfig:"COLLECTION_TRANSACTIONS" default:"transactions" validate:"required"`

	LockRedisURL string        `envconfig:"RUN_LOCK_REDIS_URL"`
	LockTTL      time.Duration `envconfig:"RUN_LOCK_TTL" default:"30m" validate:"gt=0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
}

var validate = validator.New()

// LoadConfig reads the environment, validates it and resolves the credential payload.
func LoadConfig() (*Config, error) {
	var raw env
	if err := envconfig.Process("", &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	raw.StoreBackend = strings.ToLower(strings.TrimSpace(raw.StoreBackend))
	raw.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))

	if err := validate.Struct(raw); err != nil {
		return nil, translateValidationError(err)
	}

	cfg := &Config{
		ProjectID:              raw.ProjectID,
		DryRun:                 ResolveDryRun(raw.DryRun),
		PageSize:               ResolvePageSize(raw.PageSize),
		StoreBackend:           raw.StoreBackend,
		StoreTimeout:           raw.StoreTimeout,
		MongoURI:               raw.MongoURI,
		MongoDBName:            raw.MongoDBName,
		UsersCollection:        raw.UsersCollection,
		TransactionsCollection: raw.TransactionsCollection,
		LockRedisURL:           raw.LockRedisURL,
		LockTTL:                raw.LockTTL,
		LogLevel:               raw.LogLevel,
	}

	if cfg.StoreBackend == BackendFirestore {
		sa, err := ParseCredentials(EnvServiceAccountJSON, raw.ServiceAccountJSON, ParseWithBase64Fallback)
		if err != nil {
			return nil, err
		}
		cfg.ServiceAccount = NormalizePrivateKey(sa)
	}

	return cfg, nil
}

// RequireEnv returns the value of name or ErrMissingConfiguration when unset or empty.
func RequireEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", missing(name)
	}
	return value, nil
}

// ResolveDryRun is true only for a case-insensitive "true".
func ResolveDryRun(value string) bool {
	return strings.EqualFold(value, "true")
}

// ResolvePageSize parses the leading integer of value, treats 0 or garbage
// as DefaultPageSize and clamps the result to [MinPageSize, MaxPageSize].
func ResolvePageSize(value string) int {
	n := leadingInt(strings.TrimSpace(value))
	if n == 0 {
		n = DefaultPageSize
	}
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func leadingInt(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// out of range for int; the sign decides which clamp applies
		if s[0] == '-' {
			return -1
		}
		return MaxPageSize + 1
	}
	return n
}

// LogValue keeps credentials and connection strings out of logs.
func (c *Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("backend", c.StoreBackend),
		slog.Bool("dryRun", c.DryRun),
		slog.Int("pageSize", c.PageSize),
		slog.String("usersCollection", c.UsersCollection),
		slog.String("transactionsCollection", c.TransactionsCollection),
		slog.Bool("runLock", c.LockRedisURL != ""),
	}
	switch c.StoreBackend {
	case BackendFirestore:
		attrs = append(attrs,
			slog.String("projectId", c.ProjectID),
			slog.Group("serviceAccount",
				slog.String("type", orUnknown(c.ServiceAccount.Type())),
				slog.String("project_id", orUnknown(c.ServiceAccount.ProjectID())),
				slog.Bool("has_private_key", c.ServiceAccount.HasPrivateKey()),
			),
		)
	case BackendMongo:
		attrs = append(attrs, slog.String("database", c.MongoDBName))
	}
	return slog.GroupValue(attrs...)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func translateValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	e := validationErrors[0]
	name := envName(e.StructField())
	switch e.Tag() {
	case "required", "required_if":
		return missing(name)
	default:
		return invalid(name, "value %v failed the '%s' check", e.Value(), e.Tag())
	}
}

func envName(field string) string {
	f, ok := reflect.TypeOf(env{}).FieldByName(field)
	if !ok {
		return field
	}
	return f.Tag.Get("envconfig")
}
