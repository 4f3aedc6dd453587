package scrape

import (
	"context"
	"errors"
	"sync"
	"time"
)

type statusReply struct {
	status WorkerStatus
	err    error
}

type launchReply struct {
	job JobID
	err error
}

type jobReply struct {
	state JobState
	err   error
}

// fakeProvider replays scripted replies; the last reply of each script repeats.
type fakeProvider struct {
	mu sync.Mutex

	workerReplies map[WorkerID][]statusReply
	workerChecks  map[WorkerID]int
	checkOrder    []WorkerID

	launchReplies []launchReply
	launchCalls   int
	launchArgs    []LaunchArgs

	jobReplies []jobReply
	jobCalls   int

	result      []byte
	resultErr   error
	resultCalls int

	external      map[string][]byte
	externalErr   error
	externalCalls []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		workerReplies: make(map[WorkerID][]statusReply),
		workerChecks:  make(map[WorkerID]int),
		external:      make(map[string][]byte),
	}
}

func (f *fakeProvider) WorkerStatus(_ context.Context, worker WorkerID) (WorkerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.workerChecks[worker]
	f.workerChecks[worker]++
	f.checkOrder = append(f.checkOrder, worker)
	replies := f.workerReplies[worker]
	if len(replies) == 0 {
		return "", errors.New("unknown worker")
	}
	reply := replies[min(idx, len(replies)-1)]
	return reply.status, reply.err
}

func (f *fakeProvider) Launch(_ context.Context, _ WorkerID, args LaunchArgs) (JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.launchCalls
	f.launchCalls++
	f.launchArgs = append(f.launchArgs, args)
	if len(f.launchReplies) == 0 {
		return "", errors.New("launch not scripted")
	}
	reply := f.launchReplies[min(idx, len(f.launchReplies)-1)]
	return reply.job, reply.err
}

func (f *fakeProvider) JobStatus(_ context.Context, _ JobID) (JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.jobCalls
	f.jobCalls++
	if len(f.jobReplies) == 0 {
		return JobState{}, errors.New("job status not scripted")
	}
	reply := f.jobReplies[min(idx, len(f.jobReplies)-1)]
	return reply.state, reply.err
}

func (f *fakeProvider) FetchResult(_ context.Context, _ JobID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	return f.result, f.resultErr
}

func (f *fakeProvider) FetchExternal(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.externalCalls = append(f.externalCalls, url)
	if f.externalErr != nil {
		return nil, f.externalErr
	}
	body, ok := f.external[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return body, nil
}

func (f *fakeProvider) totalWorkerChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.workerChecks {
		total += n
	}
	return total
}

func busy(n int) []statusReply {
	replies := make([]statusReply, n)
	for i := range replies {
		replies[i] = statusReply{status: WorkerRunning}
	}
	return replies
}

// fakeSleeper records requested delays without blocking.
type fakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
	err    error
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return s.err
}

func (s *fakeSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sleeps)
}

type sessionWrite struct {
	op     string
	userID string
	fields SessionFields
}

type fakeSessionStore struct {
	mu       sync.Mutex
	existing map[string]bool
	writes   []sessionWrite
	existErr error
	writeErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{existing: make(map[string]bool)}
}

func (s *fakeSessionStore) Exists(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[userID], s.existErr
}

func (s *fakeSessionStore) Create(_ context.Context, userID string, fields SessionFields) error {
	return s.record("create", userID, fields)
}

func (s *fakeSessionStore) Update(_ context.Context, userID string, fields SessionFields) error {
	return s.record("update", userID, fields)
}

func (s *fakeSessionStore) record(op, userID string, fields SessionFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, sessionWrite{op: op, userID: userID, fields: fields})
	s.existing[userID] = true
	return nil
}

func testRetryConfig() RetryConfig {
	return DefaultRetryConfig()
}
