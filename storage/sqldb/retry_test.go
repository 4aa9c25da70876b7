package sqldb

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/thirteenf/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyPing fails the first failures calls.
type flakyPing struct {
	failures int
	calls    int
	onCall   func(call int)
}

var errRefused = errors.New("connection refused")

func (f *flakyPing) ping(context.Context) error {
	f.calls++
	if f.onCall != nil {
		f.onCall(f.calls)
	}
	if f.calls <= f.failures {
		return errRefused
	}
	return nil
}

func TestConnectPolicy_Await(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		wantCalls int
		wantErr   error
	}{
		{"first ping answers", 3, 0, 1, nil},
		{"server comes up", 5, 2, 3, nil},
		{"server never comes up", 3, 10, 3, errRefused},
		{"single attempt", 1, 1, 1, errRefused},
		{"no attempts", 0, 0, 0, storage.ErrInvalidMaxAttempts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &flakyPing{failures: tt.failures}
			policy := connectPolicy{attempts: tt.attempts, delay: time.Millisecond}
			err := policy.await(context.Background(), slog.Default(), f.ping)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, f.calls)
		})
	}
}

func TestConnectPolicy_Canceled(t *testing.T) {
	t.Run("during pause", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f := &flakyPing{failures: 10, onCall: func(int) { cancel() }}

		err := connectPolicy{attempts: 5, delay: time.Hour}.await(ctx, slog.Default(), f.ping)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f := &flakyPing{failures: 10, onCall: func(call int) {
			if call == 2 {
				cancel()
			}
		}}

		err := connectPolicy{attempts: 5, delay: time.Millisecond}.await(ctx, slog.Default(), f.ping)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, f.calls)
	})
}

func TestConnectPolicy_DelayIsCapped(t *testing.T) {
	p := connectPolicy{}
	assert.Equal(t, 2*time.Second, p.next(time.Second))
	assert.Equal(t, maxConnectDelay, p.next(20*time.Second))
	assert.Equal(t, maxConnectDelay, p.next(maxConnectDelay))
}
