package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

// MockSessionStore is a testify mock of SessionStore.
type MockSessionStore struct {
	mock.Mock
}

var _ SessionStore = (*MockSessionStore)(nil)

// Exists is the mock implementation of the Exists method.
func (m *MockSessionStore) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1) //nolint:wrapcheck
}

// Create is the mock implementation of the Create method.
func (m *MockSessionStore) Create(ctx context.Context, userID string, fields scrape.SessionFields) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0) //nolint:wrapcheck
}

// Update is the mock implementation of the Update method.
func (m *MockSessionStore) Update(ctx context.Context, userID string, fields scrape.SessionFields) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0) //nolint:wrapcheck
}

// Ping is the mock implementation of the Ping method.
func (m *MockSessionStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}
