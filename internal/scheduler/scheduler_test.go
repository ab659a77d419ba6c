package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/geometric-weather/internal/polling"
	"github.com/i474232898/geometric-weather/internal/weather"
)

type fakePoller struct {
	mu      sync.Mutex
	calls   int
	reports []polling.Report
	err     error
	called  chan struct{}
}

func newFakePoller(reports ...polling.Report) *fakePoller {
	return &fakePoller{reports: reports, called: make(chan struct{}, 16)}
}

func (p *fakePoller) PollingUpdate(ctx context.Context) (polling.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.called <- struct{}{} }()

	var r polling.Report
	if p.calls < len(p.reports) {
		r = p.reports[p.calls]
	}
	p.calls++
	return r, p.err
}

func (p *fakePoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestStartRunsImmediately(t *testing.T) {
	p := newFakePoller()
	s := New(p, Options{Interval: time.Hour}, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-p.called:
	case <-time.After(5 * time.Second):
		t.Fatal("first pass did not run")
	}
	assert.Equal(t, 1, p.count())
}

func TestFailedPassIsRetriedOnce(t *testing.T) {
	failed := polling.Report{Failed: true, Results: []polling.Result{{Location: weather.BuildLocal(weather.SourceOpenMeteo)}}}
	p := newFakePoller(failed, failed)
	s := New(p, Options{Interval: time.Hour, RetryDelay: time.Millisecond}, nil)
	defer s.Stop()

	s.job()
	assert.Equal(t, 2, p.count(), "one retry, not a retry loop")
}

func TestNoRetryWhenDisabledOrSucceeded(t *testing.T) {
	p := newFakePoller(polling.Report{Failed: true})
	s := New(p, Options{}, nil)
	defer s.Stop()
	s.job()
	assert.Equal(t, 1, p.count())

	p = newFakePoller(polling.Report{})
	s = New(p, Options{RetryDelay: time.Millisecond}, nil)
	defer s.Stop()
	s.job()
	assert.Equal(t, 1, p.count())
}

func TestRetryAbortedByStop(t *testing.T) {
	p := newFakePoller(polling.Report{Failed: true})
	s := New(p, Options{RetryDelay: time.Hour}, nil)

	done := make(chan struct{})
	go func() {
		s.job()
		close(done)
	}()
	<-p.called
	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry wait ignored Stop")
	}
	assert.Equal(t, 1, p.count())
}

func TestRunNowReturnsError(t *testing.T) {
	p := newFakePoller()
	p.err = errors.New("db closed")
	s := New(p, Options{}, nil)
	defer s.Stop()

	_, err := s.RunNow(context.Background())
	assert.EqualError(t, err, "db closed")
}
