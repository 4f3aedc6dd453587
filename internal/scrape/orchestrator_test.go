package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testWorkers = []WorkerID{"2696753432671290", "2786592566218024", "8109199544661391"}

func testRequest() Request {
	return Request{
		UserID:        "u1",
		SearchURL:     "https://www.linkedin.com/sales/search/people?query=(keywords:cto)",
		SessionCookie: "AQEDAR-li_at",
	}
}

func happyProvider() *fakeProvider {
	provider := newFakeProvider()
	provider.workerReplies[testWorkers[0]] = []statusReply{{status: "FINISHED"}}
	provider.launchReplies = []launchReply{{job: "J1"}}
	provider.jobReplies = []jobReply{
		{state: JobState{Status: JobRunning}},
		{state: JobState{Status: JobRunning}},
		{state: JobState{Status: JobFinished}},
	}
	provider.result = []byte(`{"resultObject":"[{\"firstName\":\"A\",\"lastName\":\"One\"},{\"firstName\":\"B\",\"regularCompanyUrl\":\"https://co.example\"}]"}`)
	return provider
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	t.Parallel()

	provider := happyProvider()
	sessions := newFakeSessionStore()
	sleeper := &fakeSleeper{}
	orch := NewOrchestrator(provider, sessions, sleeper, testWorkers, testRetryConfig(), zap.NewNop())
	req := testRequest()

	resp, err := orch.Run(context.Background(), req)

	require.NoError(t, err)
	require.Equal(t, "u1", resp.UserID)
	require.Equal(t, req.SearchURL, resp.Message)
	require.Equal(t, []ProfileRecord{
		{FirstName: "A", LastName: "One"},
		{FirstName: "B", CompanyURL: "https://co.example"},
	}, resp.Events)

	require.Equal(t, 1, provider.totalWorkerChecks())
	require.Equal(t, 1, provider.launchCalls)
	require.Equal(t, []LaunchArgs{{SearchURL: req.SearchURL, SessionCookie: req.SessionCookie}}, provider.launchArgs)
	require.Equal(t, 3, provider.jobCalls)
	require.Equal(t, 1, provider.resultCalls)
	require.Equal(t, 2, sleeper.count())

	require.Equal(t, []sessionWrite{{
		op:     "create",
		userID: "u1",
		fields: SessionFields{SearchURL: req.SearchURL, SessionCookie: req.SessionCookie},
	}}, sessions.writes)
}

func TestOrchestrator_UpdatesExistingSession(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	sessions.existing["u1"] = true
	orch := NewOrchestrator(happyProvider(), sessions, &fakeSleeper{}, testWorkers, testRetryConfig(), nil)

	_, err := orch.Run(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, sessions.writes, 1)
	require.Equal(t, "update", sessions.writes[0].op)
}

func TestOrchestrator_AllWorkersBusyShortCircuits(t *testing.T) {
	t.Parallel()

	provider := happyProvider()
	for _, w := range testWorkers {
		provider.workerReplies[w] = busy(1)
	}
	sessions := newFakeSessionStore()
	orch := NewOrchestrator(provider, sessions, &fakeSleeper{}, testWorkers, testRetryConfig(), zap.NewNop())

	resp, err := orch.Run(context.Background(), testRequest())

	require.Equal(t, KindAllWorkersBusy, KindOf(err))
	require.Empty(t, resp.Events)
	require.Equal(t, 15, provider.totalWorkerChecks())
	require.Zero(t, provider.launchCalls)
	require.Zero(t, provider.jobCalls)
	require.Zero(t, provider.resultCalls)
	require.Empty(t, sessions.writes)
}

func TestOrchestrator_JobFailureSkipsNormalize(t *testing.T) {
	t.Parallel()

	provider := happyProvider()
	provider.jobReplies = []jobReply{{state: JobState{Status: JobFailed, Error: "invalid session cookie"}}}
	sessions := newFakeSessionStore()
	orch := NewOrchestrator(provider, sessions, &fakeSleeper{}, testWorkers, testRetryConfig(), zap.NewNop())

	_, err := orch.Run(context.Background(), testRequest())

	require.Equal(t, KindJobFailed, KindOf(err))
	require.Contains(t, err.Error(), "invalid session cookie")
	require.Zero(t, provider.resultCalls)
	require.Empty(t, sessions.writes)
}

func TestOrchestrator_SessionFailureIsInternal(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		existErr error
		writeErr error
	}{
		{name: "exists", existErr: errors.New("permission denied")},
		{name: "write", writeErr: errors.New("deadline exceeded")},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sessions := newFakeSessionStore()
			sessions.existErr = tc.existErr
			sessions.writeErr = tc.writeErr
			orch := NewOrchestrator(happyProvider(), sessions, &fakeSleeper{}, testWorkers, testRetryConfig(), zap.NewNop())

			resp, err := orch.Run(context.Background(), testRequest())

			require.Equal(t, KindInternal, KindOf(err))
			require.Contains(t, err.Error(), "failed to handle user session")
			require.Empty(t, resp.Events)
		})
	}
}

func TestOrchestrator_EmptyResultStillPersists(t *testing.T) {
	t.Parallel()

	provider := happyProvider()
	provider.result = []byte(`{"resultObject":null}`)
	sessions := newFakeSessionStore()
	orch := NewOrchestrator(provider, sessions, &fakeSleeper{}, testWorkers, testRetryConfig(), zap.NewNop())

	resp, err := orch.Run(context.Background(), testRequest())

	require.NoError(t, err)
	require.Empty(t, resp.Events)
	require.NotNil(t, resp.Events)
	require.Len(t, sessions.writes, 1)
}
