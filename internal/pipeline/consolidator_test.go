package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/observability"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConsolidator(t *testing.T, workers int) *Consolidator {
	t.Helper()
	registry, err := schema.DefaultRegistry()
	require.NoError(t, err)
	aliases, err := schema.DefaultAliases()
	require.NoError(t, err)
	normalizer, err := domain.NewNormalizer(aliases)
	require.NoError(t, err)
	directory, err := domain.NewDirectory([]domain.DirectoryEntry{
		{Code: "27001", Department: "CHOCO", Municipality: "QUIBDO"},
		{Code: "05001", Department: "ANTIOQUIA", Municipality: "MEDELLIN"},
		{Code: "19001", Department: "CAUCA", Municipality: "POPAYAN"},
	}, normalizer)
	require.NoError(t, err)

	return New(registry, directory, normalizer, discardLogger(),
		observability.NewMetricsForTesting(), workers)
}

func TestRun_ConsolidatesAcrossEras(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	c := testConsolidator(t, 4)
	extracts := []EraExtract{
		{Era: 2024, Rows: [][]string{
			{"2024", "3", "12/03/2024", "5001", "Antioquia", "Medellín", "Inundación",
				"0", "1", "0", "25", "6", "0", "2", "1250,75"},
		}},
		{Era: 1999, Rows: [][]string{
			{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
			// Exact re-report of the row above.
			{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
		}},
	}

	result, err := c.Run(context.Background(), extracts)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, c.Phase())

	require.Len(t, result.Records, 2)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, fake.Now(), result.StartedAt)
	assert.Equal(t, fake.Now(), result.FinishedAt)

	// Extracts are processed in era order regardless of input order.
	first, second := result.Records[0], result.Records[1]
	assert.Equal(t, domain.Era(1999), first.Provenance.Era)
	assert.Equal(t, domain.Era(2024), second.Provenance.Era)

	// The early record got its code resolved from the name pair.
	assert.Equal(t, "27001", first.Get(domain.FieldDivipola).Text)
	// The late record's code got zero-pad normalized.
	assert.Equal(t, "05001", second.Get(domain.FieldDivipola).Text)

	// Both carry the unified aid column.
	assert.Equal(t, 40.0, first.Get(domain.FieldHumanitarianAid).Dec)
	assert.Equal(t, 1250.75, second.Get(domain.FieldHumanitarianAid).Dec)

	assert.Equal(t, 1, result.Report.CountByKind()[domain.DuplicateDropped])
}

func TestRun_UnknownEraIsFatal(t *testing.T) {
	c := testConsolidator(t, 1)
	extracts := []EraExtract{
		{Era: 1999, Rows: [][]string{
			{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
		}},
		{Era: 1985, Rows: [][]string{{"01/01/1985"}}},
	}

	result, err := c.Run(context.Background(), extracts)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownEra)
	assert.Equal(t, PhaseFailed, c.Phase())
	assert.Empty(t, result.Records, "a failed run produces no partial table")
}

func TestRun_EmptyExtractIsFatal(t *testing.T) {
	c := testConsolidator(t, 1)
	extracts := []EraExtract{
		{Era: 1999, Rows: nil},
	}

	_, err := c.Run(context.Background(), extracts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyEraExtract)
	assert.Equal(t, PhaseFailed, c.Phase())
}

func TestRun_CanceledContext(t *testing.T) {
	c := testConsolidator(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, []EraExtract{
		{Era: 1999, Rows: [][]string{
			{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseFailed, c.Phase())
}

func TestRun_RecoverableAnomaliesDoNotAbort(t *testing.T) {
	c := testConsolidator(t, 2)
	extracts := []EraExtract{
		{Era: 1999, Rows: [][]string{
			// Bad deaths cell and a municipality unknown to the directory.
			{"23/05/1999", "Chocó", "Lloró", "Inundación", "dos", "150", "30", "5", "12", "40"},
		}},
	}

	result, err := c.Run(context.Background(), extracts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	byKind := result.Report.CountByKind()
	assert.Equal(t, 1, byKind[domain.TypeCoercionFailure])
	assert.Equal(t, 1, byKind[domain.UnresolvedCode])
	assert.Equal(t, 1, byKind[domain.UnmappedTextVariant])
}

func TestCheckReadiness(t *testing.T) {
	c := testConsolidator(t, 1)

	require.Error(t, c.CheckReadiness(context.Background()))
	assert.Equal(t, "idle", c.Status())

	_, err := c.Run(context.Background(), []EraExtract{
		{Era: 1999, Rows: [][]string{
			{"23/05/1999", "Chocó", "Quibdó", "Inundación", "2", "150", "30", "5", "12", "40"},
		}},
	})
	require.NoError(t, err)

	assert.NoError(t, c.CheckReadiness(context.Background()))
	assert.Equal(t, "done", c.Status())
}
