package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
)

// fakeHistory is a scripted HistoryProvider that counts lookups.
type fakeHistory struct {
	avg     float64
	samples int
	err     error
	calls   int
}

func (f *fakeHistory) RollingAverage(_ context.Context, _ domain.ClientID, _ string, _ domain.Field, _ int, _ time.Time) (float64, int, error) {
	f.calls++
	return f.avg, f.samples, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(fields map[domain.Field]float64) domain.RawRecord {
	return domain.RawRecord{
		ID:         uuid.New(),
		ClientID:   "CLIENT-A",
		Timestamp:  time.Date(2026, 8, 10, 6, 0, 0, 0, time.UTC),
		StyleModel: "POLO-220",
		Fields:     fields,
	}
}

func cycleTimeSpec() metrics.FieldSpec {
	return metrics.FieldSpec{
		Field: domain.FieldIdealCycleTime,
		Fallbacks: []metrics.FallbackRule{
			{Kind: metrics.RuleAlternate, Alternate: domain.FieldPlannedCycleTime},
			{Kind: metrics.RuleDerived, Derivation: "smvToHours"},
			{Kind: metrics.RuleRollingAverage, WindowDays: 30},
		},
	}
}

// TestResolve_ExactWins verifies a present field resolves at level 0 with
// confidence 1.0 even though fallbacks exist.
func TestResolve_ExactWins(t *testing.T) {
	r := NewResolver(testLogger(), &fakeHistory{}, 0, 0)

	in, err := r.Resolve(context.Background(),
		record(map[domain.Field]float64{domain.FieldIdealCycleTime: 0.5}),
		cycleTimeSpec())
	require.NoError(t, err)

	assert.Equal(t, 0, in.Level)
	assert.Equal(t, domain.SourceExact, in.Source)
	assert.Equal(t, 1.0, in.Confidence)
	assert.Equal(t, 0.5, in.Value)
}

// TestResolve_WalksChainInOrder verifies the declared order decides which
// rule wins, and confidence drops with the level.
func TestResolve_WalksChainInOrder(t *testing.T) {
	history := &fakeHistory{avg: 0.52, samples: 12}
	r := NewResolver(testLogger(), history, 0, 0)
	ctx := context.Background()

	// Alternate present -> level 1.
	in, err := r.Resolve(ctx,
		record(map[domain.Field]float64{domain.FieldPlannedCycleTime: 0.6}),
		cycleTimeSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, in.Level)
	assert.Equal(t, domain.SourceAlternate, in.Source)
	assert.Equal(t, 0.85, in.Confidence)

	// Only derivation inputs present -> level 2.
	in, err = r.Resolve(ctx,
		record(map[domain.Field]float64{domain.FieldSMVMinutes: 30}),
		cycleTimeSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, in.Level)
	assert.Equal(t, domain.SourceDerived, in.Source)
	assert.InDelta(t, 0.5, in.Value, 1e-9)
	assert.Equal(t, 0.7, in.Confidence)

	// Nothing present, rolling average has samples -> level 3.
	in, err = r.Resolve(ctx, record(nil), cycleTimeSpec())
	require.NoError(t, err)
	assert.Equal(t, 3, in.Level)
	assert.Equal(t, domain.SourceRollingAvg, in.Source)
	assert.Equal(t, 0.52, in.Value)
	assert.Equal(t, 0.5, in.Confidence)
}

// TestResolve_Default verifies a configured default resolves at level 4
// with the lowest confidence, making "assumed zero" visible.
func TestResolve_Default(t *testing.T) {
	r := NewResolver(testLogger(), &fakeHistory{}, 0, 0)

	spec := metrics.FieldSpec{
		Field: domain.FieldDowntimeHours,
		Fallbacks: []metrics.FallbackRule{
			{Kind: metrics.RuleDerived, Derivation: "downtimeFromRunTime"},
			{Kind: metrics.RuleDefault, Default: 0},
		},
	}
	in, err := r.Resolve(context.Background(), record(nil), spec)
	require.NoError(t, err)

	assert.Equal(t, 4, in.Level)
	assert.Equal(t, domain.SourceDefault, in.Source)
	assert.Equal(t, 0.0, in.Value)
	assert.Equal(t, 0.3, in.Confidence)
}

// TestResolve_FlagIncomplete verifies exhausted chains never guess.
func TestResolve_FlagIncomplete(t *testing.T) {
	r := NewResolver(testLogger(), &fakeHistory{samples: 0}, 0, 0)

	in, err := r.Resolve(context.Background(), record(nil), cycleTimeSpec())
	require.NoError(t, err)

	assert.True(t, in.Incomplete())
	assert.Equal(t, domain.SourceNone, in.Source)
	assert.Equal(t, 0.0, in.Confidence)
}

// TestConfidenceMonotonic verifies the level/confidence table never
// increases with level.
func TestConfidenceMonotonic(t *testing.T) {
	prev := 1.1
	for level := 0; level <= 4; level++ {
		c := ConfidenceForLevel(level)
		assert.LessOrEqual(t, c, prev)
		assert.Greater(t, c, 0.0)
		prev = c
	}
}

// TestResolve_Deterministic verifies identical record and history produce
// identical resolutions.
func TestResolve_Deterministic(t *testing.T) {
	history := &fakeHistory{avg: 0.52, samples: 3}
	r := NewResolver(testLogger(), history, 0, 0)
	rec := record(nil)

	first, err := r.Resolve(context.Background(), rec, cycleTimeSpec())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), rec, cycleTimeSpec())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestRollingCache verifies repeated lookups for the same grouping hit the
// memo cache instead of the history provider.
func TestRollingCache(t *testing.T) {
	history := &fakeHistory{avg: 0.52, samples: 3}
	r := NewResolver(testLogger(), history, 16, time.Minute)
	ctx := context.Background()

	_, err := r.Resolve(ctx, record(nil), cycleTimeSpec())
	require.NoError(t, err)
	_, err = r.Resolve(ctx, record(nil), cycleTimeSpec())
	require.NoError(t, err)

	assert.Equal(t, 1, history.calls)
}

// TestResolve_HistoryError verifies lookup failures surface instead of
// silently resolving.
func TestResolve_HistoryError(t *testing.T) {
	history := &fakeHistory{err: errors.New("connection refused")}
	r := NewResolver(testLogger(), history, 0, 0)

	_, err := r.Resolve(context.Background(), record(nil), cycleTimeSpec())
	require.Error(t, err)
}

// TestResolveAll verifies a fully populated record resolves every field at
// level 0, and one unfillable field reports the record incomplete.
func TestResolveAll(t *testing.T) {
	reg, err := metrics.NewRegistry()
	require.NoError(t, err)
	def, err := reg.Get("efficiency")
	require.NoError(t, err)

	r := NewResolver(testLogger(), &fakeHistory{}, 0, 0)
	ctx := context.Background()

	full := record(map[domain.Field]float64{
		domain.FieldUnitsProduced:     76,
		domain.FieldIdealCycleTime:    0.5,
		domain.FieldEmployeesAssigned: 5,
		domain.FieldScheduledHours:    8,
	})
	inputs, missing, err := r.ResolveAll(ctx, full, def)
	require.NoError(t, err)
	assert.Empty(t, missing)
	require.Len(t, inputs, 4)
	for _, in := range inputs {
		assert.Equal(t, 0, in.Level)
		assert.Equal(t, 1.0, in.Confidence)
	}

	// unitsProduced has no fallback chain: absent means excluded.
	partial := record(map[domain.Field]float64{
		domain.FieldIdealCycleTime:    0.5,
		domain.FieldEmployeesAssigned: 5,
		domain.FieldScheduledHours:    8,
	})
	_, missing, err = r.ResolveAll(ctx, partial, def)
	require.NoError(t, err)
	assert.Equal(t, domain.FieldUnitsProduced, missing)
}
