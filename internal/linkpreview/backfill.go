package linkpreview

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBackfillConcurrency = 2
	defaultBackfillPacing      = 200 * time.Millisecond
)

// ThumbnailStore lists references lacking a thumbnail and stores fetched ones.
type ThumbnailStore interface {
	ListMissingThumbnails(ctx context.Context) ([]catalog.Reference, error)
	SetThumbnail(ctx context.Context, id int64, thumbnail string) error
}

// ImageFetcher resolves the preview image of a URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL string) *string
}

// BackfillResult reports the outcome for one reference.
type BackfillResult struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Image *string `json:"image"`
}

// BackfillReport summarizes a backfill run.
type BackfillReport struct {
	Total   int              `json:"total"`
	Updated int              `json:"updated"`
	Results []BackfillResult `json:"results"`
}

// BackfillConfig configures the thumbnail backfill.
type BackfillConfig struct {
	Fetcher     ImageFetcher
	Concurrency int
	Pacing      time.Duration
	Logger      *zap.Logger
}

// Backfiller fetches missing thumbnails with bounded concurrency.
type Backfiller struct {
	fetcher     ImageFetcher
	concurrency int
	pacing      time.Duration
	logger      *zap.Logger
}

// NewBackfiller constructs a backfiller.
func NewBackfiller(cfg BackfillConfig) *Backfiller {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBackfillConcurrency
	}
	pacing := cfg.Pacing
	if pacing < 0 {
		pacing = defaultBackfillPacing
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{fetcher: cfg.Fetcher, concurrency: concurrency, pacing: pacing, logger: logger}
}

// Run fetches and stores an image for every reference without a thumbnail.
// Individual fetch or store failures are logged and reported with a nil image.
func (b *Backfiller) Run(ctx context.Context, store ThumbnailStore) (BackfillReport, error) {
	missing, err := store.ListMissingThumbnails(ctx)
	if err != nil {
		return BackfillReport{}, err
	}

	results := make([]BackfillResult, len(missing))
	var updated atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)
	for index, reference := range missing {
		results[index] = BackfillResult{ID: reference.ID, Title: reference.Title}
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			image := b.fetcher.FetchImage(groupCtx, reference.URL)
			if image != nil {
				if err := store.SetThumbnail(groupCtx, reference.ID, *image); err != nil {
					b.logger.Warn("thumbnail store failed", zap.Int64("reference_id", reference.ID), zap.Error(err))
					image = nil
				} else {
					updated.Add(1)
				}
			}
			results[index].Image = image
			return pause(groupCtx, b.pacing)
		})
	}
	if err := group.Wait(); err != nil {
		return BackfillReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return BackfillReport{}, err
	}

	report := BackfillReport{Total: len(missing), Updated: int(updated.Load()), Results: results}
	b.logger.Info("thumbnail backfill finished",
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
	)
	return report, nil
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
