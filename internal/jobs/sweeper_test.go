package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storyline/internal/metrics"
)

type fakeStories struct {
	mu    sync.Mutex
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeStories) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name         string
		now          time.Time
		hour, minute int
		want         time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			hour: 23, minute: 30,
			want: time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC),
		},
		{
			name: "already passed today",
			now:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			hour: 0, minute: 0,
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly now runs tomorrow",
			now:  time.Date(2026, 3, 1, 4, 15, 0, 0, time.UTC),
			hour: 4, minute: 15,
			want: time.Date(2026, 3, 2, 4, 15, 0, 0, time.UTC),
		},
		{
			name: "month rollover",
			now:  time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
			hour: 0, minute: 0,
			want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "keeps location",
			now:  time.Date(2026, 3, 1, 1, 0, 0, 0, loc),
			hour: 3, minute: 0,
			want: time.Date(2026, 3, 1, 3, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.now, tt.hour, tt.minute)
			assert.True(t, got.Equal(tt.want), "NextRun() = %v, want %v", got, tt.want)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestRunOnce(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		stories := &fakeStories{n: 4}
		s := NewSweeper(stories, 0, 0, metrics.New(), discardLogger())
		s.now = func() time.Time { return fixed }

		n, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		require.Len(t, stories.calls, 1)
		assert.True(t, stories.calls[0].Equal(fixed))
	})

	t.Run("failure is returned", func(t *testing.T) {
		stories := &fakeStories{err: errors.New("database locked")}
		s := NewSweeper(stories, 0, 0, nil, discardLogger())

		_, err := s.RunOnce(context.Background())
		assert.Error(t, err)
	})
}

func TestStartStop(t *testing.T) {
	stories := &fakeStories{}
	s := NewSweeper(stories, 0, 0, nil, discardLogger())

	s.Start()
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	assert.Empty(t, stories.calls, "no sweep is due within the test")
}
