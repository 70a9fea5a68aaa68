package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliograph/research-digest/internal/domain"
)

// mockMirror records saves and optionally fails. A non-zero delay stalls
// non-terminal saves to mimic a slow disk.
type mockMirror struct {
	mu    sync.Mutex
	saved []*domain.WorkflowRecord
	err   error
	delay time.Duration
}

func (m *mockMirror) Save(_ context.Context, record *domain.WorkflowRecord) error {
	if m.delay > 0 && !record.Status.IsTerminal() {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, record)
	return nil
}

func (m *mockMirror) lastSaved() *domain.WorkflowRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

func newTestRegistry(cfg Config) *Registry {
	return New(cfg, nil, nil, zerolog.Nop())
}

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Run("created record is readable", func(t *testing.T) {
		reg := newTestRegistry(Config{})

		created := reg.Create("wf-1", domain.WorkflowStatusPending, "queued")

		assert.Equal(t, "wf-1", created.ID)
		assert.Equal(t, domain.WorkflowStatusPending, created.Status)
		assert.Zero(t, created.Progress)
		assert.False(t, created.CreatedAt.IsZero())

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		assert.Equal(t, "queued", got.Message)
	})

	t.Run("unknown id is a distinct outcome", func(t *testing.T) {
		reg := newTestRegistry(Config{})

		got, ok := reg.Get("missing")
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("re-creating an id overwrites it", func(t *testing.T) {
		reg := newTestRegistry(Config{})
		reg.Create("wf-1", domain.WorkflowStatusPending, "first")
		reg.Create("wf-1", domain.WorkflowStatusPending, "second")

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		assert.Equal(t, "second", got.Message)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("snapshots are isolated from later writes", func(t *testing.T) {
		reg := newTestRegistry(Config{})
		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")

		before, ok := reg.Get("wf-1")
		require.True(t, ok)

		reg.Update("wf-1", domain.WorkflowUpdate{
			Status:   domain.StatusOf(domain.WorkflowStatusProcessing),
			Progress: domain.ProgressOf(50),
		})

		assert.Equal(t, domain.WorkflowStatusPending, before.Status)
		assert.Zero(t, before.Progress)
	})
}

func TestRegistry_Update(t *testing.T) {
	t.Run("merges only the provided fields", func(t *testing.T) {
		reg := newTestRegistry(Config{})
		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")

		reg.Update("wf-1", domain.WorkflowUpdate{Progress: domain.ProgressOf(20)})

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		assert.Equal(t, domain.WorkflowStatusPending, got.Status)
		assert.Equal(t, 20.0, got.Progress)
		assert.Equal(t, "queued", got.Message)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		reg := newTestRegistry(Config{})

		reg.Update("missing", domain.WorkflowUpdate{Progress: domain.ProgressOf(10)})

		assert.Zero(t, reg.Len())
	})

	t.Run("terminal records reject further mutation", func(t *testing.T) {
		reg := newTestRegistry(Config{})
		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")
		reg.Update("wf-1", domain.WorkflowUpdate{
			Status:   domain.StatusOf(domain.WorkflowStatusCompleted),
			Progress: domain.ProgressOf(100),
		})

		reg.Update("wf-1", domain.WorkflowUpdate{
			Status:   domain.StatusOf(domain.WorkflowStatusProcessing),
			Progress: domain.ProgressOf(10),
		})

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		assert.Equal(t, domain.WorkflowStatusCompleted, got.Status)
		assert.Equal(t, 100.0, got.Progress)
	})

	t.Run("stores result payloads", func(t *testing.T) {
		reg := newTestRegistry(Config{})
		reg.Create("wf-1", domain.WorkflowStatusProcessing, "working")

		reg.Update("wf-1", domain.WorkflowUpdate{
			Status: domain.StatusOf(domain.WorkflowStatusCompleted),
			Result: &domain.ResultPayload{
				WorkflowID:      "wf-1",
				PapersProcessed: 3,
				Status:          "completed",
			},
		})

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		require.NotNil(t, got.Result)
		assert.Equal(t, 3, got.Result.PapersProcessed)
	})
}

func TestRegistry_Eviction(t *testing.T) {
	t.Run("evicts oldest terminal records past the cap", func(t *testing.T) {
		reg := newTestRegistry(Config{MaxRecords: 3})

		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("wf-%d", i)
			reg.Create(id, domain.WorkflowStatusPending, "queued")
			reg.Update(id, domain.WorkflowUpdate{Status: domain.StatusOf(domain.WorkflowStatusCompleted)})
		}
		reg.Create("wf-new", domain.WorkflowStatusPending, "queued")

		assert.Equal(t, 3, reg.Len())

		_, ok := reg.Get("wf-0")
		assert.False(t, ok, "oldest terminal record should be evicted")

		_, ok = reg.Get("wf-new")
		assert.True(t, ok)
	})

	t.Run("never evicts in-flight records", func(t *testing.T) {
		reg := newTestRegistry(Config{MaxRecords: 2})

		reg.Create("wf-0", domain.WorkflowStatusProcessing, "working")
		reg.Create("wf-1", domain.WorkflowStatusProcessing, "working")
		reg.Create("wf-2", domain.WorkflowStatusProcessing, "working")

		assert.Equal(t, 3, reg.Len(), "in-flight records stay even over the cap")
		for _, id := range []string{"wf-0", "wf-1", "wf-2"} {
			_, ok := reg.Get(id)
			assert.True(t, ok, id)
		}
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := newTestRegistry(Config{})
	reg.Create("wf-1", domain.WorkflowStatusPending, "queued")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writer goroutine mimics the coordinator publishing milestones.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			progress := float64(i % 100)
			message := fmt.Sprintf("milestone %d", i)
			reg.Update("wf-1", domain.WorkflowUpdate{
				Progress: domain.ProgressOf(progress),
				Message:  domain.MessageOf(message),
			})
		}
		close(stop)
	}()

	// Reader goroutines mimic status pollers; every snapshot must be
	// internally consistent (message matches progress written together).
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, ok := reg.Get("wf-1")
				if !ok {
					continue
				}
				if got.Message != "queued" {
					var i int
					_, err := fmt.Sscanf(got.Message, "milestone %d", &i)
					assert.NoError(t, err)
					assert.Equal(t, float64(i%100), got.Progress,
						"snapshot mixed progress and message from different updates")
				}
			}
		}()
	}

	wg.Wait()
}

func TestRegistry_Mirror(t *testing.T) {
	t.Run("writes snapshots to the mirror", func(t *testing.T) {
		mirror := &mockMirror{}
		reg := New(Config{}, mirror, nil, zerolog.Nop())

		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")
		reg.Update("wf-1", domain.WorkflowUpdate{Progress: domain.ProgressOf(50)})

		require.Eventually(t, func() bool {
			last := mirror.lastSaved()
			return last != nil && last.Progress == 50
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("slow writes never clobber the terminal state", func(t *testing.T) {
		mirror := &mockMirror{delay: 150 * time.Millisecond}
		reg := New(Config{}, mirror, nil, zerolog.Nop())

		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")
		reg.Update("wf-1", domain.WorkflowUpdate{
			Status:   domain.StatusOf(domain.WorkflowStatusProcessing),
			Progress: domain.ProgressOf(50),
		})
		reg.Update("wf-1", domain.WorkflowUpdate{
			Status:   domain.StatusOf(domain.WorkflowStatusCompleted),
			Progress: domain.ProgressOf(100),
		})

		require.Eventually(t, func() bool {
			last := mirror.lastSaved()
			return last != nil && last.Status == domain.WorkflowStatusCompleted
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, 100.0, mirror.lastSaved().Progress)

		// The terminal state must stay the last applied write.
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, domain.WorkflowStatusCompleted, mirror.lastSaved().Status)
	})

	t.Run("mirror failures do not affect the registry", func(t *testing.T) {
		mirror := &mockMirror{err: errors.New("disk full")}
		reg := New(Config{}, mirror, nil, zerolog.Nop())

		reg.Create("wf-1", domain.WorkflowStatusPending, "queued")

		got, ok := reg.Get("wf-1")
		require.True(t, ok)
		assert.Equal(t, "queued", got.Message)
	})
}
