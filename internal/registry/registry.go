// Package registry holds the in-memory workflow registry. It is the single
// source of truth for workflow state: the pipeline coordinator writes
// milestone updates into it and the status endpoints read snapshots out of
// it. An optional mirror receives best-effort copies of every write for
// post-mortem inspection; mirror failures never affect the registry.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

// DefaultMaxRecords bounds the registry when no cap is configured.
const DefaultMaxRecords = 1024

// mirrorWriteTimeout bounds each background mirror write.
const mirrorWriteTimeout = 5 * time.Second

// Mirror persists workflow records outside the registry. Implementations
// must tolerate repeated saves of the same id.
type Mirror interface {
	Save(ctx context.Context, record *domain.WorkflowRecord) error
}

// Registry is a concurrency-safe map of workflow records. Readers always
// receive deep-copied snapshots, so a reader can never observe a record
// mid-update.
type Registry struct {
	mu         sync.RWMutex
	records    map[string]*domain.WorkflowRecord
	order      []string
	maxRecords int

	mirror  Mirror
	metrics *observability.Metrics
	logger  zerolog.Logger

	// Mirror writes are drained by a single goroutine so snapshots reach
	// the mirror in registry order. Only the latest snapshot per workflow
	// is kept pending; intermediate states a slow mirror misses are
	// superseded, never reordered.
	mirrorMu      sync.Mutex
	mirrorPending map[string]*domain.WorkflowRecord
	mirrorQueue   []string
	mirrorWake    chan struct{}
}

// Config holds registry configuration.
type Config struct {
	// MaxRecords caps the number of retained records. When the cap is
	// exceeded, the oldest terminal records are evicted first; records
	// still in flight are never evicted.
	MaxRecords int
}

// New creates a registry. mirror may be nil to disable mirroring.
func New(cfg Config, mirror Mirror, metrics *observability.Metrics, logger zerolog.Logger) *Registry {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	r := &Registry{
		records:    make(map[string]*domain.WorkflowRecord),
		maxRecords: cfg.MaxRecords,
		mirror:     mirror,
		metrics:    metrics,
		logger:     logger.With().Str("component", "registry").Logger(),
	}
	if mirror != nil {
		r.mirrorPending = make(map[string]*domain.WorkflowRecord)
		r.mirrorWake = make(chan struct{}, 1)
		go r.mirrorLoop()
	}
	return r
}

// Create registers a new workflow record. Ids are caller-generated unique
// tokens, so creation is idempotent in practice; re-creating an existing id
// overwrites it (last writer wins).
func (r *Registry) Create(id string, status domain.WorkflowStatus, message string) *domain.WorkflowRecord {
	record := &domain.WorkflowRecord{
		ID:        id,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	if _, exists := r.records[id]; !exists {
		r.order = append(r.order, id)
	}
	r.records[id] = record
	r.evictLocked()
	snapshot := record.Clone()
	r.mu.Unlock()

	r.mirrorWrite(snapshot)
	return snapshot
}

// Update merges the non-nil fields of update into the record. Unknown ids
// are a warned no-op; terminal records reject further mutation.
func (r *Registry) Update(id string, update domain.WorkflowUpdate) {
	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn().Str("workflow_id", id).Msg("update for unknown workflow dropped")
		return
	}
	if record.Status.IsTerminal() {
		r.mu.Unlock()
		r.logger.Warn().Str("workflow_id", id).Str("status", string(record.Status)).
			Msg("update for terminal workflow dropped")
		return
	}

	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Progress != nil {
		record.Progress = *update.Progress
	}
	if update.Message != nil {
		record.Message = *update.Message
	}
	if update.Result != nil {
		record.Result = update.Result
	}
	if update.Error != nil {
		record.Error = *update.Error
	}

	snapshot := record.Clone()
	r.mu.Unlock()

	r.mirrorWrite(snapshot)
}

// Get returns a snapshot of the record, or false when the id is unknown.
func (r *Registry) Get(id string) (*domain.WorkflowRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Len returns the number of retained records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// evictLocked drops the oldest terminal records while over the cap. Called
// with the write lock held.
func (r *Registry) evictLocked() {
	if len(r.records) <= r.maxRecords {
		return
	}

	kept := r.order[:0]
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok {
			continue
		}
		if len(r.records) > r.maxRecords && record.Status.IsTerminal() {
			delete(r.records, id)
			r.logger.Debug().Str("workflow_id", id).Msg("evicted terminal workflow record")
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if len(r.records) > r.maxRecords {
		r.logger.Warn().Int("records", len(r.records)).Int("cap", r.maxRecords).
			Msg("registry over capacity with no terminal records to evict")
	}
}

// mirrorWrite queues a snapshot for the mirror writer. A newer snapshot of
// the same workflow replaces a still-pending one, so the mirror always
// converges on the latest state and a slow earlier write can never land
// after a terminal one. Failures are logged and counted, never surfaced.
func (r *Registry) mirrorWrite(snapshot *domain.WorkflowRecord) {
	if r.mirror == nil {
		return
	}

	r.mirrorMu.Lock()
	if _, queued := r.mirrorPending[snapshot.ID]; !queued {
		r.mirrorQueue = append(r.mirrorQueue, snapshot.ID)
	}
	r.mirrorPending[snapshot.ID] = snapshot
	r.mirrorMu.Unlock()

	select {
	case r.mirrorWake <- struct{}{}:
	default:
	}
}

// mirrorLoop drains queued snapshots one at a time.
func (r *Registry) mirrorLoop() {
	for range r.mirrorWake {
		for {
			r.mirrorMu.Lock()
			if len(r.mirrorQueue) == 0 {
				r.mirrorMu.Unlock()
				break
			}
			id := r.mirrorQueue[0]
			r.mirrorQueue = r.mirrorQueue[1:]
			snapshot := r.mirrorPending[id]
			delete(r.mirrorPending, id)
			r.mirrorMu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
			err := r.mirror.Save(ctx, snapshot)
			cancel()
			if err != nil {
				r.logger.Warn().Err(err).Str("workflow_id", snapshot.ID).Msg("mirror write failed")
				if r.metrics != nil {
					r.metrics.MirrorWriteFailures.Inc()
				}
			}
		}
	}
}
