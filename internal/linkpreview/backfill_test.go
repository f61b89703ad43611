package linkpreview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu         sync.Mutex
	missing    []catalog.Reference
	listErr    error
	failOn     map[int64]bool
	thumbnails map[int64]string
}

func (s *stubStore) ListMissingThumbnails(context.Context) ([]catalog.Reference, error) {
	return s.missing, s.listErr
}

func (s *stubStore) SetThumbnail(_ context.Context, id int64, thumbnail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[id] {
		return errors.New("disk full")
	}
	if s.thumbnails == nil {
		s.thumbnails = map[int64]string{}
	}
	s.thumbnails[id] = thumbnail
	return nil
}

type stubFetcher map[string]string

func (f stubFetcher) FetchImage(_ context.Context, rawURL string) *string {
	image, ok := f[rawURL]
	if !ok {
		return nil
	}
	return &image
}

func TestBackfillReportsEveryReferenceInOrder(t *testing.T) {
	store := &stubStore{
		missing: []catalog.Reference{
			{ID: 1, Title: "Awwwards", URL: "https://a.example"},
			{ID: 2, Title: "No Image", URL: "https://b.example"},
			{ID: 3, Title: "Store Fails", URL: "https://c.example"},
			{ID: 4, Title: "Muzli", URL: "https://d.example"},
		},
		failOn: map[int64]bool{3: true},
	}
	fetcher := stubFetcher{
		"https://a.example": "https://a.example/og.png",
		"https://c.example": "https://c.example/og.png",
		"https://d.example": "https://d.example/og.png",
	}

	backfiller := NewBackfiller(BackfillConfig{Fetcher: fetcher, Concurrency: 3})
	report, err := backfiller.Run(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, 4, report.Total)
	require.Equal(t, 2, report.Updated)
	require.Len(t, report.Results, 4)

	for index, result := range report.Results {
		require.Equal(t, store.missing[index].ID, result.ID)
	}
	require.NotNil(t, report.Results[0].Image)
	require.Nil(t, report.Results[1].Image)
	require.Nil(t, report.Results[2].Image)
	require.Equal(t, "https://d.example/og.png", *report.Results[3].Image)
	require.Equal(t, map[int64]string{
		1: "https://a.example/og.png",
		4: "https://d.example/og.png",
	}, store.thumbnails)
}

func TestBackfillPropagatesListFailure(t *testing.T) {
	backfiller := NewBackfiller(BackfillConfig{Fetcher: stubFetcher{}})
	_, err := backfiller.Run(context.Background(), &stubStore{listErr: errors.New("locked")})
	require.Error(t, err)
}

func TestBackfillStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &stubStore{missing: []catalog.Reference{{ID: 1, URL: "https://a.example"}}}
	backfiller := NewBackfiller(BackfillConfig{Fetcher: stubFetcher{}, Pacing: 1})
	_, err := backfiller.Run(ctx, store)
	require.ErrorIs(t, err, context.Canceled)
}
