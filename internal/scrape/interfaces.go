package scrape

import (
	"context"
	"time"
)

// Provider is the remote job runner that owns the agents.
type Provider interface {
	WorkerStatus(ctx context.Context, worker WorkerID) (WorkerStatus, error)
	// Launch returns ErrMaxParallelism when the account cannot start more
	// containers and a *ProviderError for any other rejection.
	Launch(ctx context.Context, worker WorkerID, args LaunchArgs) (JobID, error)
	JobStatus(ctx context.Context, job JobID) (JobState, error)
	// FetchResult returns the raw result-object document of a container.
	FetchResult(ctx context.Context, job JobID) ([]byte, error)
	// FetchExternal downloads a payload the result object points to.
	FetchExternal(ctx context.Context, url string) ([]byte, error)
}

// SessionStore persists the last search parameters of each user. Every write
// stamps the record with a store-assigned timestamp.
type SessionStore interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, userID string, fields SessionFields) error
	Update(ctx context.Context, userID string, fields SessionFields) error
}

// Verifier turns a bearer token into a verified user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Sleeper blocks between retry attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
