package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, cfg Config) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(cfg)
	t.Cleanup(s.Close)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	payload := []byte("Contact Jane Doe at jane@example.com")
	id, err := s.Put(ctx, payload, ".txt")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	obj, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, obj.Data)
	assert.Equal(t, ".txt", obj.MediaKind)
	assert.Equal(t, int64(len(payload)), obj.Size)
	assert.True(t, obj.ExpiresAt.After(obj.CreatedAt))
}

func TestPutCopiesPayload(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	payload := []byte("original")
	id, err := s.Put(ctx, payload, ".txt")
	require.NoError(t, err)

	payload[0] = 'X'

	obj, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), obj.Data)
}

func TestPutRejectsEmptyPayload(t *testing.T) {
	s := newTestStore(t, Config{})
	_, err := s.Put(context.Background(), nil, ".txt")
	assert.Error(t, err)
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, Config{})

	_, err := s.Get(context.Background(), "b2f9a310-9a9c-4a0e-9d5e-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	// malformed identifiers are indistinguishable from unknown ones
	_, err = s.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAfterTTLReturnsNotFound(t *testing.T) {
	// sweep far in the future so only the per-read check can act
	s := newTestStore(t, Config{TTL: 30 * time.Millisecond, SweepInterval: time.Hour})
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("short-lived"), ".txt")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len(), "entry should still occupy memory until the sweep runs")
}

func TestSweepReclaimsOnlyExpired(t *testing.T) {
	var swept int
	s := newTestStore(t, Config{
		TTL:           30 * time.Millisecond,
		SweepInterval: time.Hour,
		OnSweep:       func(n int) { swept += n },
	})
	ctx := context.Background()

	_, err := s.Put(ctx, []byte("doomed"), ".txt")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	liveID, err := s.Put(ctx, []byte("alive"), ".txt")
	require.NoError(t, err)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, liveID)
	assert.NoError(t, err)
}

func TestBackgroundSweepRuns(t *testing.T) {
	s := newTestStore(t, Config{TTL: 20 * time.Millisecond, SweepInterval: 10 * time.Millisecond})
	ctx := context.Background()

	_, err := s.Put(ctx, []byte("x"), ".txt")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	id, err := s.Put(ctx, []byte("x"), ".txt")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsMetadataOnly(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	first, err := s.Put(ctx, []byte("first"), ".txt")
	require.NoError(t, err)
	second, err := s.Put(ctx, []byte("second"), ".pdf")
	require.NoError(t, err)

	objs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, []string{first, second}, []string{objs[0].ID, objs[1].ID})
	for _, o := range objs {
		assert.Nil(t, o.Data)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t, Config{TTL: 50 * time.Millisecond, SweepInterval: 5 * time.Millisecond})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				payload := []byte(fmt.Sprintf("worker-%d-%d", n, j))
				id, err := s.Put(ctx, payload, ".txt")
				if err != nil {
					t.Error(err)
					return
				}
				obj, err := s.Get(ctx, id)
				if err != nil {
					t.Error(err)
					return
				}
				if string(obj.Data) != string(payload) {
					t.Errorf("round trip mismatch: %q != %q", obj.Data, payload)
					return
				}
				_ = s.Delete(ctx, id)
			}
		}(i)
	}
	wg.Wait()
}
