package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/rtestimate/internal/models"
)

func mustStorage(t *testing.T, maxRuns int) *Storage {
	t.Helper()
	s, err := New(":memory:", maxRuns)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var day0 = time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC)

// testRun builds a three-day run for region created at createdAt.
func testRun(region string, createdAt time.Time) (*models.Run, models.CaseSeries, models.CaseSeries, []models.Estimate) {
	original := models.CaseSeries{
		{Date: day0, Count: 40},
		{Date: day0.AddDate(0, 0, 1), Count: 52},
		{Date: day0.AddDate(0, 0, 2), Count: 47},
	}
	smoothed := models.CaseSeries{
		{Date: day0, Count: 44},
		{Date: day0.AddDate(0, 0, 1), Count: 47},
		{Date: day0.AddDate(0, 0, 2), Count: 49},
	}
	estimates := []models.Estimate{
		{Date: day0.AddDate(0, 0, 1), MostLikely: 1.3, Low: 0.6, High: 2.2},
		{Date: day0.AddDate(0, 0, 2), MostLikely: 1.15, Low: 0.7, High: 1.8},
	}
	return models.NewRun(region, createdAt, estimates), original, smoothed, estimates
}

func TestStorage_SaveAndGetRun(t *testing.T) {
	s := mustStorage(t, 10)
	createdAt := time.Now().Add(-time.Minute)
	run, original, smoothed, estimates := testRun("HUS", createdAt)

	require.NoError(t, s.SaveRun(run, original, smoothed, estimates))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "HUS", got.Region)
	assert.Equal(t, 2, got.Days)
	assert.True(t, got.CreatedAt.Equal(createdAt))
	assert.True(t, got.FirstDate.Equal(estimates[0].Date))
	assert.True(t, got.LastDate.Equal(estimates[1].Date))
	assert.Equal(t, 1.15, got.Latest.MostLikely)
	assert.NoError(t, got.Validate())

	gotEstimates, err := s.GetEstimates(run.ID)
	require.NoError(t, err)
	assert.Equal(t, estimates, gotEstimates)

	gotOriginal, gotSmoothed, err := s.GetCases(run.ID)
	require.NoError(t, err)
	assert.Equal(t, original, gotOriginal)
	assert.Equal(t, smoothed, gotSmoothed)
}

func TestStorage_GetRunNotFound(t *testing.T) {
	s := mustStorage(t, 10)

	_, err := s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LatestRun("HUS")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStorage_LatestRunPerRegion(t *testing.T) {
	s := mustStorage(t, 10)
	now := time.Now()

	older, o, sm, e := testRun("HUS", now.Add(-2*time.Hour))
	require.NoError(t, s.SaveRun(older, o, sm, e))
	newer, o, sm, e := testRun("HUS", now.Add(-time.Hour))
	require.NoError(t, s.SaveRun(newer, o, sm, e))
	other, o, sm, e := testRun("Pirkanmaa", now.Add(-time.Minute))
	require.NoError(t, s.SaveRun(other, o, sm, e))

	latest, err := s.LatestRun("HUS")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
}

func TestStorage_SaveRunRejectsInvalid(t *testing.T) {
	s := mustStorage(t, 10)

	run, original, smoothed, estimates := testRun("HUS", time.Now().Add(-time.Minute))
	run.Region = ""
	assert.Error(t, s.SaveRun(run, original, smoothed, estimates))

	run, original, smoothed, estimates = testRun("HUS", time.Now().Add(-time.Minute))
	assert.Error(t, s.SaveRun(run, original[:2], smoothed, estimates))

	run, original, smoothed, estimates = testRun("HUS", time.Now().Add(-time.Minute))
	estimates[0].Low = 1.5 // above ML
	assert.Error(t, s.SaveRun(run, original, smoothed, estimates))

	// Failed saves leave nothing behind
	n, err := s.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	rows, err := s.GetEstimates(run.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStorage_RotateRuns(t *testing.T) {
	s := mustStorage(t, 3) // Max 3 runs
	now := time.Now()

	var ids []string
	for i := 0; i < 5; i++ {
		run, o, sm, e := testRun("HUS", now.Add(time.Duration(-5+i)*time.Minute))
		require.NoError(t, s.SaveRun(run, o, sm, e))
		ids = append(ids, run.ID)
	}

	require.NoError(t, s.RotateRuns())

	n, err := s.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// The two oldest runs are gone with their rows
	for _, id := range ids[:2] {
		_, err := s.GetRun(id)
		assert.True(t, errors.Is(err, ErrNotFound))
		est, err := s.GetEstimates(id)
		require.NoError(t, err)
		assert.Empty(t, est)
		orig, _, err := s.GetCases(id)
		require.NoError(t, err)
		assert.Empty(t, orig)
	}
	for _, id := range ids[2:] {
		_, err := s.GetRun(id)
		assert.NoError(t, err)
	}
}

func TestStorage_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rt.db")

	s, err := New(path, 10)
	require.NoError(t, err)
	run, o, sm, e := testRun("HUS", time.Now().Add(-time.Minute))
	require.NoError(t, s.SaveRun(run, o, sm, e))
	require.NoError(t, s.Close())

	s2, err := New(path, 10)
	require.NoError(t, err)
	defer s2.Close()

	loaded, err := s2.LatestRun("HUS")
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
}
