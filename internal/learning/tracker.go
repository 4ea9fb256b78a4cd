package learning

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/logging"
	"github.com/khanglvm/persona-mcp/internal/storage"
)

const (
	// eventQueueSize is the buffer size for the history queue.
	// If full, events are dropped (non-blocking).
	eventQueueSize = 1000

	// batchFlushSize is the number of events that triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often pending events are flushed.
	flushInterval = 50 * time.Millisecond

	// DefaultKeywordCap is how many leading context keywords one activation records.
	DefaultKeywordCap = 5
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// KeywordMinLength is the shortest token recorded as a keyword.
	KeywordMinLength int

	// KeywordCap is how many leading keywords are recorded per activation.
	KeywordCap int

	Logger *zap.Logger
}

// Tracker records persona activations.
//
// The analytics record is updated synchronously and its errors are returned.
// The history database is written by a background goroutine; a full queue
// drops events with a warning.
type Tracker struct {
	store      *analytics.Store
	history    storage.Storage
	extractor  *analytics.KeywordExtractor
	keywordCap int
	logger     *zap.Logger

	eventQueue chan ActivationEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	mu         sync.RWMutex
}

// NewTracker creates a tracker writing to store and, when history is non-nil,
// to the activation history database in the background. Stop must be called
// to flush pending history events.
func NewTracker(store *analytics.Store, history storage.Storage, opts TrackerOptions) *Tracker {
	if opts.KeywordCap <= 0 {
		opts.KeywordCap = DefaultKeywordCap
	}

	t := &Tracker{
		store:      store,
		history:    history,
		extractor:  analytics.NewKeywordExtractor(opts.KeywordMinLength),
		keywordCap: opts.KeywordCap,
		logger:     logging.OrNop(opts.Logger),
		eventQueue: make(chan ActivationEvent, eventQueueSize),
		stopChan:   make(chan struct{}),
		enabled:    history != nil,
	}

	if history != nil {
		if err := history.Init(); err != nil {
			t.logger.Warn("activation history initialization failed", zap.Error(err))
			t.enabled = false
		}
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// TrackUsage records an activation of persona with the given context.
func (t *Tracker) TrackUsage(persona, context string) error {
	return t.Track(NewActivationEvent(persona, context, ""))
}

// Track increments the persona's usage count, folds the first KeywordCap
// context keywords into its pattern table and persists the record. A storage
// write failure is returned. On success the event is queued for history.
func (t *Tracker) Track(event ActivationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	err := t.store.Update(func(rec *analytics.Record) error {
		rec.IncrementUsage(event.Persona)
		if event.Context != "" {
			rec.AddPatterns(event.Persona, t.extractor.First(event.Context, t.keywordCap))
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.enqueue(event)
	return nil
}

func (t *Tracker) enqueue(event ActivationEvent) {
	if !t.IsEnabled() {
		return
	}

	select {
	case t.eventQueue <- event:
	default:
		t.logger.Warn("history queue full, dropping activation", zap.String("persona", event.Persona))
	}
}

// Stop gracefully shuts down the tracker, flushing remaining events.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// IsEnabled returns whether history recording is enabled.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// processEvents runs in the background, batching and flushing events.
func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]ActivationEvent, 0, batchFlushSize)

	for {
		select {
		case event := <-t.eventQueue:
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-t.stopChan:
			// Drain whatever is still queued, then exit.
			for {
				select {
				case event := <-t.eventQueue:
					batch = append(batch, event)
					if len(batch) >= batchFlushSize {
						t.flush(batch)
						batch = batch[:0]
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the history database.
func (t *Tracker) flush(events []ActivationEvent) {
	if len(events) == 0 || t.history == nil {
		return
	}

	for _, event := range events {
		if err := t.history.RecordActivation(event.ToStorage()); err != nil {
			t.logger.Warn("failed to record activation", zap.String("persona", event.Persona), zap.Error(err))
		}
	}
}
