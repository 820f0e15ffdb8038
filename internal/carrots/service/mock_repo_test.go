package service

import (
	"context"
	"sort"

	"carrotreset/internal/carrots/model"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a testify mock of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) ListUsersAfter(ctx context.Context, cursor string, limit int) ([]model.UserRecord, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UserRecord), args.Error(1)
}

func (m *MockUserRepository) CommitResets(ctx context.Context, resets []model.Reset) error {
	args := m.Called(ctx, resets)
	return args.Error(0)
}

func (m *MockUserRepository) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memoryRepository is an ordered in-memory store that records every call.
type memoryRepository struct {
	users   map[string]model.UserRecord
	current map[string]int
	txs     map[string][]model.Transaction

	fetches []string // cursors passed to ListUsersAfter
	commits [][]model.Reset

	failCommitAt int // 1-based commit number that fails, 0 = never
	commitErr    error
}

func newMemoryRepository(users ...model.UserRecord) *memoryRepository {
	repo := &memoryRepository{
		users:   make(map[string]model.UserRecord),
		current: make(map[string]int),
		txs:     make(map[string][]model.Transaction),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *memoryRepository) ListUsersAfter(_ context.Context, cursor string, limit int) ([]model.UserRecord, error) {
	r.fetches = append(r.fetches, cursor)
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	page := make([]model.UserRecord, 0, len(ids))
	for _, id := range ids {
		page = append(page, r.users[id])
	}
	return page, nil
}

func (r *memoryRepository) CommitResets(_ context.Context, resets []model.Reset) error {
	if r.failCommitAt > 0 && len(r.commits)+1 == r.failCommitAt {
		return r.commitErr
	}
	r.commits = append(r.commits, append([]model.Reset(nil), resets...))
	for _, reset := range resets {
		r.current[reset.UserID] = reset.Amount
		r.txs[reset.UserID] = append(r.txs[reset.UserID], model.NewResetTransaction(reset))
	}
	return nil
}

func (r *memoryRepository) Close(context.Context) error { return nil }

func (r *memoryRepository) writes() int {
	n := 0
	for _, c := range r.commits {
		n += len(c) * model.OpsPerReset
	}
	return n
}
