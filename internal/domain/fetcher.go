package domain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/workoutcache/internal/observability"
)

// PageSource fetches one page of a remote paginated collection.
type PageSource interface {
	FetchPage(ctx context.Context, resource string, page int) (Page, error)
}

// FetcherConfig bounds a single pagination walk.
type FetcherConfig struct {
	MaxPages    int           // Upper bound on pages walked per call, whatever page_count says.
	PageTimeout time.Duration // Deadline for each page request; zero disables it.
}

// DefaultFetcherConfig is used when no config is supplied.
var DefaultFetcherConfig = FetcherConfig{MaxPages: 500, PageTimeout: 15 * time.Second}

// FetchStats summarises a pagination walk.
type FetchStats struct {
	Pages           int
	Skipped         int
	OrderViolations int
	Truncated       bool
}

// Fetcher walks a remote collection page by page.
type Fetcher struct {
	source PageSource
	cfg    FetcherConfig
	logger *zap.Logger
}

// NewFetcher constructs a Fetcher. Non-positive MaxPages falls back to the default cap.
func NewFetcher(source PageSource, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultFetcherConfig.MaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{source: source, cfg: cfg, logger: logger}
}

// Fetch requests page 1, takes the page count from it and walks the remaining pages by counter.
// An incremental plan keeps only records newer than the cutoff and stops after the first page that
// yields fewer qualifying records than it holds. If a page is not ordered newest first the early
// stop is disabled for the rest of the walk. A failed page aborts the walk; the records gathered so
// far are returned together with an error wrapping ErrUpstreamUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, resource string, plan FetchPlan) ([]Record, FetchStats, error) {
	var (
		out       []Record
		stats     FetchStats
		total     = 1
		earlyStop = !plan.Full
	)

	for number := 1; number <= total; number++ {
		page, err := f.page(ctx, resource, number)
		if err != nil {
			return out, stats, fmt.Errorf("%w: %s page %d: %w", ErrUpstreamUnavailable, resource, number, err)
		}
		stats.Pages++

		if number == 1 {
			total = page.PageCount
			if total <= 0 {
				return out, stats, nil
			}
			if total > f.cfg.MaxPages {
				f.logger.Warn("upstream page count exceeds cap",
					zap.String("resource", resource),
					zap.Int("page_count", total),
					zap.Int("max_pages", f.cfg.MaxPages))
				stats.Truncated = true
				total = f.cfg.MaxPages
			}
		}

		considered, kept := 0, 0
		for _, r := range page.Records {
			if r.ID == "" {
				stats.Skipped++
				continue
			}
			considered++
			if plan.Qualifies(r) {
				out = append(out, r)
				kept++
			}
		}

		if !earlyStop {
			continue
		}
		if !newestFirst(page.Records) {
			stats.OrderViolations++
			earlyStop = false
			f.logger.Warn("page not ordered newest first; scanning remaining pages",
				zap.String("resource", resource),
				zap.Int("page", number))
			continue
		}
		if kept < considered {
			break
		}
	}

	return out, stats, nil
}

func (f *Fetcher) page(ctx context.Context, resource string, number int) (Page, error) {
	if f.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.PageTimeout)
		defer cancel()
	}
	page, err := f.source.FetchPage(ctx, resource, number)
	if err != nil {
		return Page{}, err
	}
	observability.RecordPageFetched(resource)
	return page, nil
}

func newestFirst(records []Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt > records[i-1].CreatedAt {
			return false
		}
	}
	return true
}
