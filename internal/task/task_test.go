package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppliesResult(t *testing.T) {
	s := NewScope(context.Background())
	var got int
	h := Go(s, func(context.Context) (int, error) { return 42, nil }, func(v int, err error) { got = v })

	require.NoError(t, s.Wait())
	assert.Equal(t, 42, got)
	assert.True(t, h.Applied())
}

func TestCancelledHandleIsNotApplied(t *testing.T) {
	s := NewScope(context.Background())
	release := make(chan struct{})
	applied := false

	h := Go(s, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	}, func(string, error) { applied = true })

	h.Cancel()
	close(release)
	<-h.Done()

	assert.False(t, applied)
	assert.False(t, h.Applied())
	assert.NoError(t, s.Wait())
}

func TestCloseCancelsOutstandingWork(t *testing.T) {
	s := NewScope(context.Background())
	applied := false
	h := Go(s, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int, error) { applied = true })

	s.Close()

	<-h.Done()
	assert.False(t, applied)
}

func TestParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewScope(parent)
	applied := false
	Go(s, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 1, nil
	}, func(int, error) { applied = true })

	cancel()
	assert.ErrorIs(t, s.Wait(), context.Canceled)
	assert.False(t, applied)
}

func TestDeadlineIsReported(t *testing.T) {
	tests := []struct {
		name  string
		fetch func(ctx context.Context) (int, error)
		want  error
	}{
		{
			name: "fetch error wins",
			fetch: func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 0, fmt.Errorf("list: %w", ctx.Err())
			},
			want: context.DeadlineExceeded,
		},
		{
			name: "late success",
			fetch: func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 7, nil
			},
			want: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			s := NewScope(parent)
			defer s.Close()

			applied := false
			h := Go(s, tt.fetch, func(int, error) { applied = true })

			assert.ErrorIs(t, s.Wait(), tt.want)
			assert.False(t, applied)
			assert.False(t, h.Applied())
		})
	}
}

func TestErrorIsAppliedAndReturned(t *testing.T) {
	boom := errors.New("boom")
	s := NewScope(context.Background())
	var gotErr error
	Go(s, func(context.Context) (int, error) { return 0, boom }, func(_ int, err error) { gotErr = err })

	assert.ErrorIs(t, s.Wait(), boom)
	assert.ErrorIs(t, gotErr, boom)
}

func TestIndependentHandles(t *testing.T) {
	s := NewScope(context.Background())
	var a, b int
	ha := Go(s, func(context.Context) (int, error) { return 1, nil }, func(v int, _ error) { a = v })
	block := make(chan struct{})
	hb := Go(s, func(ctx context.Context) (int, error) {
		<-block
		return 2, nil
	}, func(v int, _ error) { b = v })

	<-ha.Done()
	hb.Cancel()
	close(block)
	require.NoError(t, s.Wait())

	assert.Equal(t, 1, a)
	assert.Equal(t, 0, b)
}
