package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dobby/pkg/configstore"
)

const (
	schedTestInterval = 10 * time.Millisecond
	schedTestWait     = time.Second
	schedTestTick     = 5 * time.Millisecond
	schedTestLong     = time.Hour
	schedTestTasks    = 3
)

func TestAddRepeating_RunsImmediatelyAndRepeats(t *testing.T) {
	s := New(Config{})
	defer s.StopAll()

	var runs atomic.Int32
	require.NoError(t, s.AddRepeating("counter", func() { runs.Add(1) }, schedTestInterval))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, schedTestWait, schedTestTick)
	assert.Equal(t, 1, s.Len())
}

func TestAddRepeating_FirstRunDoesNotWaitForInterval(t *testing.T) {
	s := New(Config{})
	defer s.StopAll()

	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddRepeating("once", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, schedTestLong))

	select {
	case <-ran:
	case <-time.After(schedTestWait):
		t.Fatal("task did not run immediately")
	}
}

func TestAddRepeating_DisabledRegistersNothing(t *testing.T) {
	s := New(Config{Disabled: true})

	var runs atomic.Int32
	err := s.AddRepeating("ignored", func() { runs.Add(1) }, schedTestInterval)

	assert.NoError(t, err)
	assert.True(t, s.Disabled())
	assert.Equal(t, 0, s.Len())

	time.Sleep(3 * schedTestInterval)
	assert.Zero(t, runs.Load())
	s.StopAll()
}

func TestAddRepeating_InvalidInterval(t *testing.T) {
	s := New(Config{})

	for _, interval := range []time.Duration{0, -time.Second} {
		err := s.AddRepeating("bad", func() {}, interval)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
	assert.Equal(t, 0, s.Len())
}

func TestStopAll_StopsEveryTask(t *testing.T) {
	s := New(Config{})

	counters := make([]*atomic.Int32, schedTestTasks)
	for i := range counters {
		counters[i] = &atomic.Int32{}
		c := counters[i]
		require.NoError(t, s.AddRepeating("task", func() { c.Add(1) }, schedTestInterval))
	}
	assert.Eventually(t, func() bool {
		for _, c := range counters {
			if c.Load() < 2 {
				return false
			}
		}
		return true
	}, schedTestWait, schedTestTick)

	s.StopAll()
	assert.Equal(t, 0, s.Len())

	snapshot := make([]int32, len(counters))
	for i, c := range counters {
		snapshot[i] = c.Load()
	}
	time.Sleep(5 * schedTestInterval)
	for i, c := range counters {
		assert.Equal(t, snapshot[i], c.Load(), "task %d ran after StopAll", i)
	}

	s.StopAll()
}

func TestStopAll_WaitsForRunInProgress(t *testing.T) {
	s := New(Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var once sync.Once

	require.NoError(t, s.AddRepeating("slow", func() {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
	}, schedTestLong))

	<-started
	stopped := make(chan struct{})
	go func() {
		s.StopAll()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("StopAll returned while a run was in progress")
	case <-time.After(3 * schedTestInterval):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(schedTestWait):
		t.Fatal("StopAll did not return after the run finished")
	}
	assert.True(t, finished.Load())
}

func TestAddRepeating_PanicDoesNotKillTimer(t *testing.T) {
	s := New(Config{})
	defer s.StopAll()

	var runs atomic.Int32
	require.NoError(t, s.AddRepeating("flaky", func() {
		if runs.Add(1) == 1 {
			panic("first run fails")
		}
	}, schedTestInterval))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, schedTestWait, schedTestTick)
}

func TestTasksAreIsolated(t *testing.T) {
	s := New(Config{})
	defer s.StopAll()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, s.AddRepeating("stuck", func() { <-block }, schedTestInterval))

	var runs atomic.Int32
	require.NoError(t, s.AddRepeating("healthy", func() { runs.Add(1) }, schedTestInterval))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, schedTestWait, schedTestTick,
		"a stuck task must not starve other tasks")
}

func TestConfigFromLookup(t *testing.T) {
	assert.False(t, ConfigFromLookup(configstore.Empty()).Disabled)

	v := configstore.FromMap(map[string]any{
		"dobby": map[string]any{"scheduler": map[string]any{"disabled": true}},
	})
	assert.True(t, ConfigFromLookup(v).Disabled)
}
