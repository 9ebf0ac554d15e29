package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func batchAt(id string, started time.Time, figures ...int) *domain.BatchResult {
	outcomes := make([]domain.ExtractionOutcome, 0, len(figures)+1)
	for i, n := range figures {
		outcomes = append(outcomes, domain.SuccessOutcome(
			fmt.Sprintf("/in/%s-%d.pdf", id, i), make([]domain.FigureSummary, n), time.Second))
	}
	outcomes = append(outcomes, domain.FailureOutcome("/in/"+id+"-bad.pdf", "command failed with return code 1: x", time.Second))
	r := domain.NewBatchResult(id, "/in/"+id, outcomes, started)
	r.ElapsedSeconds = 2.5
	return r
}

func TestOpen_None(t *testing.T) {
	s, err := Open(context.Background(), DriverNone, "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestSaveAndGet(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	in := batchAt("b1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), 3, 1)

	require.NoError(t, s.Save(ctx, in))

	out, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, in.BatchID, out.BatchID)
	assert.Equal(t, in.Source, out.Source)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Outcomes, 3)
	assert.Equal(t, in.Outcomes[2].ErrorMessage, out.Outcomes[2].ErrorMessage)
	assert.True(t, in.StartedAt.Equal(out.StartedAt))
}

func TestGet_NotFound(t *testing.T) {
	s := openSQLite(t)
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSave_Upsert(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	r := batchAt("b1", time.Now(), 1)
	require.NoError(t, s.Save(ctx, r))

	r.StatFileError = "disk full"
	require.NoError(t, s.Save(ctx, r))

	out, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "disk full", out.StatFileError)

	entries, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_RequiresID(t *testing.T) {
	s := openSQLite(t)
	err := s.Save(context.Background(), &domain.BatchResult{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, batchAt(fmt.Sprintf("b%d", i), base.Add(time.Duration(i)*time.Minute), i)))
	}

	entries, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "b4", entries[0].BatchID)
	assert.Equal(t, "b3", entries[1].BatchID)
	assert.Equal(t, "b2", entries[2].BatchID)
	assert.Equal(t, 4, entries[0].Figures)
	assert.Equal(t, 2, entries[0].Total)
	assert.Equal(t, 2.5, entries[0].ElapsedSeconds)
	assert.True(t, base.Add(4*time.Minute).Equal(entries[0].StartedAt))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestList_Empty(t *testing.T) {
	s := openSQLite(t)
	entries, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, s.Ping(context.Background()))
}
