package model

import (
	"math"
	"strings"
)

// UserRecord is the part of a user document the weekly reset reads.
type UserRecord struct {
	ID                 string
	SubscriptionStatus string
	// CarrotsMax holds carrots.max as decoded by the store: int64, float64,
	// or whatever else was stored there. nil when absent.
	CarrotsMax any
}

// Status returns the lowercased subscription status, "free" when unset.
func (u UserRecord) Status() string {
	if u.SubscriptionStatus == "" {
		return SubscriptionFree
	}
	return strings.ToLower(u.SubscriptionStatus)
}

func (u UserRecord) IsPremium() bool {
	return u.Status() == SubscriptionPremium
}

// ResetAmount is the value carrots.current is reset to.
func (u UserRecord) ResetAmount() int {
	return CarrotsMaxOrDefault(u.CarrotsMax)
}

// CarrotsMaxOrDefault truncates finite numbers toward zero, saturating at the
// int range, and returns DefaultCarrotsMax for everything else (missing, NaN,
// Inf, strings, ...).
func CarrotsMaxOrDefault(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return truncFinite(float64(n))
	case float64:
		return truncFinite(n)
	default:
		return DefaultCarrotsMax
	}
}

func truncFinite(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultCarrotsMax
	}
	t := math.Trunc(f)
	switch {
	case t >= float64(math.MaxInt):
		return math.MaxInt
	case t <= float64(math.MinInt):
		return math.MinInt
	}
	return int(t)
}
