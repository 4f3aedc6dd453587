package scrape

import "time"

// WorkerID identifies one automation agent in the provider's pool.
type WorkerID string

// JobID identifies one container (execution) of an agent.
type JobID string

// WorkerStatus is the provider-reported state of an agent.
type WorkerStatus string

// WorkerRunning is the only status that marks an agent as busy.
const WorkerRunning WorkerStatus = "RUNNING"

// JobStatus is the provider-reported state of a container.
type JobStatus string

// Container status values observed while polling.
const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobFailed   JobStatus = "failed"
)

// JobState is a single observation of a container.
type JobState struct {
	Status JobStatus
	// Error is the provider's failure message, only set for failed containers.
	Error string
}

// LaunchArgs are the scrape parameters handed to an agent.
type LaunchArgs struct {
	SearchURL     string
	SessionCookie string
}

// RetryConfig holds the fixed budgets of the polling stages.
type RetryConfig struct {
	MaxRetries      int
	RetryDelay      time.Duration
	PollMaxAttempts int
	PollDelay       time.Duration
}

// DefaultRetryConfig returns the budgets used when nothing is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		RetryDelay:      60 * time.Second,
		PollMaxAttempts: 30,
		PollDelay:       10 * time.Second,
	}
}

// ProfileRecord is the normalized shape of one scraped profile.
type ProfileRecord struct {
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Title                  string `json:"title"`
	CompanyName            string `json:"companyName"`
	Industry               string `json:"industry"`
	CompanyLocation        string `json:"companyLocation"`
	ProfileLocation        string `json:"profileLocation"`
	ConnectionDegree       string `json:"connectionDegree"`
	ProfileImageURL        string `json:"profileImageUrl"`
	SharedConnectionsCount int    `json:"sharedConnectionsCount"`
	DefaultProfileURL      string `json:"defaultProfileUrl"`
	CompanyURL             string `json:"companyUrl"`
}

// SessionFields are the per-user values persisted after a successful scrape.
type SessionFields struct {
	SearchURL     string
	SessionCookie string
}

// Session is a stored UserSession as read back from a store.
type Session struct {
	UserID        string    `json:"userId"`
	SearchURL     string    `json:"searchUrl"`
	SessionCookie string    `json:"-"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Request is one authenticated scrape submission.
type Request struct {
	UserID        string
	SearchURL     string
	SessionCookie string
}

// Response is returned to the caller once every stage succeeded.
type Response struct {
	Events  []ProfileRecord `json:"events"`
	UserID  string          `json:"userId"`
	Message string          `json:"message"`
}
