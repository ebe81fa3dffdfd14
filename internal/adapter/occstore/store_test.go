package occstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

const testSpecies = "Centropristis striata"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "occ.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecs() []domain.Occurrence {
	return []domain.Occurrence{
		{
			TaxonID:        "159244",
			ScientificName: testSpecies,
			Lon:            -70.5,
			Lat:            41.2,
			EventDate:      time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			TaxonID:        "159244",
			ScientificName: testSpecies,
			Lon:            -71.1,
			Lat:            40.8,
			EventDate:      time.Date(2023, 6, 20, 12, 30, 0, 0, time.UTC),
		},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSpecies, testRecs()))

	recs, found, err := s.Load(ctx, testSpecies)
	require.NoError(t, err)
	assert.True(t, found)
	if diff := cmp.Diff(testRecs(), recs); diff != "" {
		t.Errorf("cached records mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMiss(t *testing.T) {
	s := openTestStore(t)

	recs, found, err := s.Load(context.Background(), "Gadus morhua")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, recs)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSpecies, testRecs()))
	require.NoError(t, s.Save(ctx, testSpecies, testRecs()[:1]))

	recs, found, err := s.Load(ctx, testSpecies)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, recs, 1)
}

type mockFetcher struct {
	recs  []domain.Occurrence
	err   error
	calls int
}

func (m *mockFetcher) FetchOccurrences(_ context.Context, _ string) ([]domain.Occurrence, error) {
	m.calls++
	return m.recs, m.err
}

func TestCachedFetcher_MissThenHit(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{recs: testRecs()}
	cached := NewCachedFetcher(fetcher, s, testLogger())
	ctx := context.Background()

	recs, err := cached.FetchOccurrences(ctx, testSpecies)
	require.NoError(t, err)
	assert.Equal(t, testRecs(), recs)
	assert.Equal(t, 1, fetcher.calls)

	recs, err = cached.FetchOccurrences(ctx, testSpecies)
	require.NoError(t, err)
	assert.Equal(t, testRecs(), recs)
	assert.Equal(t, 1, fetcher.calls, "second call must be served from the cache")
}

func TestCachedFetcher_EmptyResultNotCached(t *testing.T) {
	s := openTestStore(t)
	fetcher := &mockFetcher{}
	cached := NewCachedFetcher(fetcher, s, testLogger())
	ctx := context.Background()

	_, err := cached.FetchOccurrences(ctx, testSpecies)
	require.NoError(t, err)
	_, err = cached.FetchOccurrences(ctx, testSpecies)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCachedFetcher_FetchError(t *testing.T) {
	s := openTestStore(t)
	fetchErr := errors.New("obis unavailable")
	cached := NewCachedFetcher(&mockFetcher{err: fetchErr}, s, testLogger())

	_, err := cached.FetchOccurrences(context.Background(), testSpecies)
	require.ErrorIs(t, err, fetchErr)
}
