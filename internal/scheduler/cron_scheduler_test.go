package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/court_watch/internal/cycle"
)

// fakeRunner implements CycleRunner for testing
type fakeRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*cycle.Result, error) {
	n := f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	res := &cycle.Result{CycleID: fmt.Sprintf("cycle-%d", n), StartedAt: time.Now(), FinishedAt: time.Now()}
	if f.err != nil {
		res.FetchErr = f.err
		return res, f.err
	}
	return res, nil
}

// fakeRecorder implements cache.Recorder for testing
type fakeRecorder struct {
	mu       sync.Mutex
	running  []bool
	next     []time.Time
	triggers []string
}

func (r *fakeRecorder) SetRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = append(r.running, running)
}

func (r *fakeRecorder) SetNextRun(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = append(r.next, at)
}

func (r *fakeRecorder) Record(trigger string, res *cycle.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
}

func (r *fakeRecorder) Triggers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"@every 10m", false},
		{"@hourly", false},
		{"*/5 * * * *", false},
		{"0 */5 * * * *", false},
		{"0 7 * * MON-FRI", false},
		{"", true},
		{"every ten minutes", true},
		{"61 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseSpec(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCronScheduler(t *testing.T) {
	_, err := NewCronScheduler(nil, nil, DefaultSpec, time.UTC)
	assert.Error(t, err)

	_, err = NewCronScheduler(&fakeRunner{}, nil, "bogus", time.UTC)
	assert.Error(t, err)

	s, err := NewCronScheduler(&fakeRunner{}, nil, "  ", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec, s.Spec())
	assert.Equal(t, time.Local, s.Location())
	assert.True(t, s.NextRun().IsZero())
}

func TestTrigger_RecordsResult(t *testing.T) {
	runner := &fakeRunner{}
	rec := &fakeRecorder{}
	s, _ := NewCronScheduler(runner, rec, DefaultSpec, time.UTC)

	res, err := s.Trigger(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, []string{TriggerManual}, rec.Triggers())
	assert.Equal(t, []bool{true, false}, rec.running)
}

func TestTrigger_FailureIsRecordedAndReturned(t *testing.T) {
	runner := &fakeRunner{err: errors.New("fetch failed")}
	rec := &fakeRecorder{}
	s, _ := NewCronScheduler(runner, rec, DefaultSpec, time.UTC)

	res, err := s.Trigger(context.Background(), TriggerManual)
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{TriggerManual}, rec.Triggers())
}

func TestTrigger_SkipsWhileRunning(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := NewCronScheduler(runner, nil, DefaultSpec, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), TriggerCron)
		done <- err
	}()
	<-runner.started

	_, err := s.Trigger(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())

	// free again once the first cycle finished
	_, err = s.Trigger(context.Background(), TriggerManual)
	assert.NoError(t, err)
}

func TestQueue_RunsOnceAfterRunningCycle(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 4)}
	rec := &fakeRecorder{}
	s, _ := NewCronScheduler(runner, rec, DefaultSpec, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), TriggerCron)
		done <- err
	}()
	<-runner.started

	// two changes while busy collapse into one rerun
	s.Queue(context.Background(), TriggerWatch)
	s.Queue(context.Background(), TriggerWatch)
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.block)
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return len(rec.Triggers()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{TriggerCron, TriggerWatch}, rec.Triggers())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestQueue_RunsImmediatelyWhenIdle(t *testing.T) {
	runner := &fakeRunner{}
	rec := &fakeRecorder{}
	s, _ := NewCronScheduler(runner, rec, DefaultSpec, time.UTC)

	s.Queue(context.Background(), TriggerWatch)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, []string{TriggerWatch}, rec.Triggers())
}

func TestQueue_CancelledContextIsDropped(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 4)}
	s, _ := NewCronScheduler(runner, nil, DefaultSpec, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), TriggerCron)
		done <- err
	}()
	<-runner.started

	ctx, cancel := context.WithCancel(context.Background())
	s.Queue(ctx, TriggerWatch)
	cancel()

	close(runner.block)
	require.NoError(t, <-done)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestStart_RunsOnScheduleAndStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	rec := &fakeRecorder{}
	s, err := NewCronScheduler(runner, rec, "@every 1s", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "double start")
	assert.False(t, s.NextRun().IsZero())

	require.Eventually(t, func() bool { return len(rec.Triggers()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, TriggerCron, rec.Triggers()[0])

	cancel()
	assert.Eventually(t, func() bool { return s.NextRun().IsZero() }, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	calls := runner.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, runner.calls.Load(), "no runs after stop")
}

func TestStop_Idempotent(t *testing.T) {
	s, _ := NewCronScheduler(&fakeRunner{}, nil, DefaultSpec, time.UTC)
	s.Stop(context.Background())

	require.NoError(t, s.Start(context.Background()))
	s.Stop(context.Background())
	s.Stop(context.Background())
	assert.True(t, s.NextRun().IsZero())
}
