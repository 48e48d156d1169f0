package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL matches the original five-minute upload window.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepInterval bounds worst-case memory staleness to TTL/10.
	DefaultSweepInterval = 30 * time.Second
)

// Config tunes a MemoryStore.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration

	// OnSweep, if set, is called with the number of objects each sweep
	// reclaimed. Used for metrics; never called with zero.
	OnSweep func(removed int)
}

// MemoryStore keeps payloads in a mutex-guarded map. Expiry is enforced on
// every read, so the background sweep only reclaims memory and never
// affects correctness.
type MemoryStore struct {
	ttl           time.Duration
	sweepInterval time.Duration
	onSweep       func(int)

	mu      sync.RWMutex
	objects map[string]*Object

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ Store = &MemoryStore{}

// NewMemoryStore creates the store and starts its sweep goroutine. Call
// Close to stop it.
func NewMemoryStore(cfg Config) *MemoryStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore{
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		onSweep:       cfg.OnSweep,
		objects:       make(map[string]*Object),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.sweepLoop()

	slog.Info("object store initialized", "ttl", s.ttl, "sweep_interval", s.sweepInterval)
	return s
}

// Put stores data under a fresh UUID. The identifier cannot collide with a
// live entry: UUIDs are collision-resistant and the insert still re-rolls
// on the (theoretical) duplicate rather than overwriting.
func (s *MemoryStore) Put(ctx context.Context, data []byte, mediaKind string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty payload")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	now := time.Now()
	obj := &Object{
		MediaKind: mediaKind,
		Size:      int64(len(buf)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Data:      buf,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := uuid.New().String()
		if _, exists := s.objects[id]; exists {
			continue
		}
		obj.ID = id
		s.objects[id] = obj
		slog.Info("object stored", "id", id, "media_kind", mediaKind, "size", obj.Size)
		return id, nil
	}
}

// Get returns the object if present and not expired. The expiry check is
// per-read: an expired entry the sweep has not reclaimed yet is never
// served.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Object, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.mu.RLock()
	obj, exists := s.objects[id]
	s.mu.RUnlock()

	if !exists || time.Now().After(obj.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return obj, nil
}

// Delete removes an object early. Deleting an already-reclaimed identifier
// returns ErrNotFound.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.objects, id)
	slog.Info("object deleted", "id", id)
	return nil
}

// List returns metadata (no payload) for all live objects, oldest first.
func (s *MemoryStore) List(ctx context.Context) ([]*Object, error) {
	now := time.Now()

	s.mu.RLock()
	out := make([]*Object, 0, len(s.objects))
	for _, obj := range s.objects {
		if now.After(obj.ExpiresAt) {
			continue
		}
		meta := *obj
		meta.Data = nil
		out = append(out, &meta)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len reports the number of entries currently held, including expired ones
// the sweep has not reclaimed yet.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Sweep removes every entry whose expiry has passed and returns how many
// were reclaimed.
func (s *MemoryStore) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	removed := 0
	for id, obj := range s.objects {
		if now.After(obj.ExpiresAt) {
			delete(s.objects, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		slog.Debug("sweep reclaimed expired objects", "removed", removed)
		if s.onSweep != nil {
			s.onSweep(removed)
		}
	}
	return removed
}

func (s *MemoryStore) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the sweep goroutine. The store remains readable afterwards.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}
