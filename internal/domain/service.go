// Package domain holds the cache synchronization engine: fetch planning, pagination,
// merging and the orchestration that ties them to a durable store.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"example.com/workoutcache/internal/observability"
)

var (
	// ErrUpstreamUnavailable marks a non-success response or network failure from the remote service.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrCacheCorrupt marks a persisted collection that could not be parsed.
	ErrCacheCorrupt = errors.New("cache corrupt")
	// ErrCacheWriteFailure marks a failed persist of a collection or blob.
	ErrCacheWriteFailure = errors.New("cache write failure")
	// ErrRecordNotFound is returned when a record is neither cached nor available upstream.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnknownCollection is returned for collection names the service does not manage.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidBlob is returned when a blob name or payload is rejected.
	ErrInvalidBlob = errors.New("invalid blob")
)

// Store persists whole collections. Implementations degrade unparseable state to an empty collection.
type Store interface {
	Load(ctx context.Context, c Collection) ([]Record, error)
	Save(ctx context.Context, c Collection, records []Record) error
}

// BlobStore keeps opaque JSON documents by name. A missing blob loads as nil with no error.
type BlobStore interface {
	LoadBlob(ctx context.Context, name string) (json.RawMessage, error)
	SaveBlob(ctx context.Context, name string, payload json.RawMessage) error
}

// RecordSource is the upstream service as seen by the engine.
type RecordSource interface {
	PageSource
	FetchOne(ctx context.Context, resource, id string) (Record, error)
}

// SyncPublisher announces completed syncs to interested consumers.
type SyncPublisher interface {
	PublishSynced(ctx context.Context, event SyncEvent) error
}

// SyncStatus is the outcome of a sync run.
type SyncStatus string

const (
	SyncStatusSuccess             SyncStatus = "success"
	SyncStatusUpstreamUnavailable SyncStatus = "upstream_unavailable"
)

// SyncResult describes one sync run of a collection.
type SyncResult struct {
	RunID      string        `json:"run_id"`
	Collection Collection    `json:"collection"`
	Mode       SyncMode      `json:"mode"`
	Status     SyncStatus    `json:"status"`
	Fetched    int           `json:"fetched"`
	Added      int           `json:"count"`
	Total      int           `json:"total"`
	Pages      int           `json:"pages"`
	Persisted  bool          `json:"persisted"`
	Truncated  bool          `json:"truncated,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// SyncEvent is published after a sync that added records.
type SyncEvent struct {
	RunID      string    `json:"run_id"`
	Collection string    `json:"collection"`
	Mode       string    `json:"mode"`
	Added      int       `json:"added"`
	Total      int       `json:"total"`
	Cutoff     string    `json:"cutoff,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFetcherConfig sets the pagination bounds.
func WithFetcherConfig(cfg FetcherConfig) Option {
	return func(s *Service) {
		s.fetcherCfg = cfg
	}
}

// WithPublisher attaches a sync event publisher.
func WithPublisher(p SyncPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates sync and read workflows over the cached collections.
type Service struct {
	store      Store
	blobs      BlobStore
	source     RecordSource
	fetcher    *Fetcher
	fetcherCfg FetcherConfig
	publisher  SyncPublisher
	logger     *zap.Logger
	now        func() time.Time

	inflight singleflight.Group

	mu   sync.RWMutex
	last map[Collection]SyncResult
}

// NewService constructs a Service.
func NewService(store Store, blobs BlobStore, source RecordSource, opts ...Option) *Service {
	s := &Service{
		store:      store,
		blobs:      blobs,
		source:     source,
		fetcherCfg: DefaultFetcherConfig,
		logger:     zap.NewNop(),
		now:        time.Now,
		last:       make(map[Collection]SyncResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sync")
	s.fetcher = NewFetcher(source, s.fetcherCfg, s.logger)
	return s
}

// Sync refreshes a collection from upstream. Concurrent calls for the same collection share one run,
// which is detached from the callers' cancellation. On upstream failure the cache is left untouched
// and the returned error wraps ErrUpstreamUnavailable.
func (s *Service) Sync(ctx context.Context, c Collection) (SyncResult, error) {
	if !c.Synced() {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}

	ch := s.inflight.DoChan(string(c), func() (any, error) {
		return s.runSync(context.WithoutCancel(ctx), c)
	})

	select {
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	case res := <-ch:
		result, _ := res.Val.(SyncResult)
		return result, res.Err
	}
}

// SyncAll syncs every mirrored collection in turn. A failure in one does not stop the others.
func (s *Service) SyncAll(ctx context.Context) []SyncResult {
	results := make([]SyncResult, 0, len(SyncedCollections))
	for _, c := range SyncedCollections {
		if ctx.Err() != nil {
			return results
		}
		result, err := s.Sync(ctx, c)
		if err != nil {
			s.logger.Warn("sync failed", zap.String("collection", string(c)), zap.Error(err))
			if ctx.Err() != nil {
				return results
			}
		}
		results = append(results, result)
	}
	return results
}

func (s *Service) runSync(ctx context.Context, c Collection) (SyncResult, error) {
	start := s.now()
	result := SyncResult{
		RunID:      uuid.NewString(),
		Collection: c,
		StartedAt:  start.UTC(),
	}

	existing := s.load(ctx, c)
	plan := PlanFor(existing)
	result.Mode = plan.Mode()

	logger := s.logger.With(
		zap.String("collection", string(c)),
		zap.String("run_id", result.RunID),
		zap.String("mode", string(result.Mode)),
	)
	if !plan.Full {
		logger = logger.With(zap.String("cutoff", plan.Cutoff))
	}

	fetched, stats, err := s.fetcher.Fetch(ctx, c.Resource(), plan)
	result.Fetched = len(fetched)
	result.Pages = stats.Pages
	result.Truncated = stats.Truncated

	if err != nil {
		result.Status = SyncStatusUpstreamUnavailable
		result.Total = len(existing)
		result.Duration = s.now().Sub(start)
		logger.Warn("sync aborted, cache left untouched",
			zap.Int("partial_records", len(fetched)),
			zap.Int("pages", stats.Pages),
			zap.Error(err))
		observability.RecordSyncRun(string(c), string(result.Mode), string(result.Status), result.Duration)
		s.remember(result)
		return result, err
	}

	merged := Merge(fetched, existing)
	result.Added = countNew(merged, existing)
	result.Total = len(merged)

	if err := s.store.Save(ctx, c, merged); err != nil {
		logger.Error("cache write failed, merged snapshot kept in memory only", zap.Error(err))
		observability.RecordCacheWriteFailure(string(c))
	} else {
		result.Persisted = true
	}

	result.Status = SyncStatusSuccess
	result.Duration = s.now().Sub(start)
	logger.Info("sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("added", result.Added),
		zap.Int("total", result.Total),
		zap.Int("pages", stats.Pages),
		zap.Int("skipped", stats.Skipped),
		zap.Int("order_violations", stats.OrderViolations),
		zap.Duration("duration", result.Duration))
	observability.RecordSyncRun(string(c), string(result.Mode), string(result.Status), result.Duration)
	observability.RecordSyncSuccess(string(c), result.Added, result.Total, s.now())
	s.remember(result)

	if result.Added > 0 {
		s.publish(ctx, logger, result, merged)
	}
	return result, nil
}

// countNew counts merged ids that were not cached before.
func countNew(merged, existing []Record) int {
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}
	added := 0
	for _, r := range merged {
		if _, ok := seen[r.ID]; !ok {
			added++
		}
	}
	return added
}

func (s *Service) publish(ctx context.Context, logger *zap.Logger, result SyncResult, merged []Record) {
	if s.publisher == nil {
		return
	}
	cutoff, _ := CutoffMarker(merged)
	event := SyncEvent{
		RunID:      result.RunID,
		Collection: string(result.Collection),
		Mode:       string(result.Mode),
		Added:      result.Added,
		Total:      result.Total,
		Cutoff:     cutoff,
		SyncedAt:   s.now().UTC(),
	}
	if err := s.publisher.PublishSynced(ctx, event); err != nil {
		logger.Warn("sync event publish failed", zap.Error(err))
		observability.RecordPublishFailure(string(result.Collection))
	}
}

func (s *Service) remember(result SyncResult) {
	s.mu.Lock()
	s.last[result.Collection] = result
	s.mu.Unlock()
}

// LastResults returns the most recent sync result per collection, in startup order.
func (s *Service) LastResults() []SyncResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SyncResult, 0, len(s.last))
	for _, c := range SyncedCollections {
		if r, ok := s.last[c]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Read returns the cached collection without touching the network. It never fails.
func (s *Service) Read(ctx context.Context, c Collection) []Record {
	records := s.load(ctx, c)
	if records == nil {
		records = []Record{}
	}
	return records
}

// ReadOne looks a record up in the cache and falls back to a direct upstream fetch on a miss.
// Records fetched this way are not merged into the cache.
func (s *Service) ReadOne(ctx context.Context, c Collection, id string) (Record, error) {
	if !c.Synced() {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	for _, r := range s.load(ctx, c) {
		if r.ID == id {
			return r, nil
		}
	}

	s.logger.Debug("cache miss, fetching from upstream", zap.String("collection", string(c)), zap.String("id", id))
	record, err := s.source.FetchOne(ctx, c.Resource(), id)
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

func (s *Service) load(ctx context.Context, c Collection) []Record {
	records, err := s.store.Load(ctx, c)
	if err != nil {
		s.logger.Warn("cache load failed, treating as empty", zap.String("collection", string(c)), zap.Error(err))
		observability.RecordCacheLoadFailure(string(c))
		return nil
	}
	return records
}

var blobName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// SaveBlob stores a caller-supplied JSON array verbatim.
func (s *Service) SaveBlob(ctx context.Context, name string, payload json.RawMessage) error {
	if err := validateBlobName(name); err != nil {
		return err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil || items == nil {
		return fmt.Errorf("%w: payload must be a JSON array", ErrInvalidBlob)
	}
	if err := s.blobs.SaveBlob(ctx, name, payload); err != nil {
		s.logger.Error("blob write failed", zap.String("blob", name), zap.Error(err))
		observability.RecordCacheWriteFailure(name)
		return err
	}
	return nil
}

// LoadBlob returns a stored blob, or an empty JSON array when none was saved.
func (s *Service) LoadBlob(ctx context.Context, name string) (json.RawMessage, error) {
	if err := validateBlobName(name); err != nil {
		return nil, err
	}
	payload, err := s.blobs.LoadBlob(ctx, name)
	if err != nil {
		s.logger.Warn("blob load failed, returning empty", zap.String("blob", name), zap.Error(err))
		observability.RecordCacheLoadFailure(name)
		return json.RawMessage("[]"), nil
	}
	if len(payload) == 0 {
		return json.RawMessage("[]"), nil
	}
	return payload, nil
}

func validateBlobName(name string) error {
	if !blobName.MatchString(name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidBlob, name)
	}
	if Collection(name).Synced() {
		return fmt.Errorf("%w: %q is a synced collection", ErrInvalidBlob, name)
	}
	return nil
}
