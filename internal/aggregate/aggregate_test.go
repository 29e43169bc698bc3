package aggregate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
)

func testWindow(granularity domain.Granularity) domain.Window {
	return domain.Window{
		From:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Granularity: granularity,
	}
}

func def(t *testing.T, name string) *metrics.Definition {
	t.Helper()
	reg, err := metrics.NewRegistry()
	require.NoError(t, err)
	d, err := reg.Get(name)
	require.NoError(t, err)
	return d
}

func value(client domain.ClientID, day int, num, den float64, inputs ...domain.ResolvedInput) RecordValue {
	rec := domain.RawRecord{
		ID:        uuid.New(),
		ClientID:  client,
		Timestamp: time.Date(2026, 8, day, 10, 0, 0, 0, time.UTC),
	}
	return FromRecord(rec, num, den, inputs)
}

func stageValue(stage domain.Stage, day int, num, den float64) RecordValue {
	rec := domain.RawRecord{
		ID:        uuid.New(),
		ClientID:  "CLIENT-A",
		Timestamp: time.Date(2026, 8, day, 10, 0, 0, 0, time.UTC),
		Stage:     stage,
	}
	return FromRecord(rec, num, den, nil)
}

// TestAggregate_RatioCorrect verifies sum-of-numerators over
// sum-of-denominators, not the mean of per-record ratios. Two records with
// ratios 100% and 50% but very different weights must not average to 75%.
func TestAggregate_RatioCorrect(t *testing.T) {
	d := def(t, "fpy")
	values := []RecordValue{
		value("CLIENT-A", 3, 10, 10),  // 100% of 10 units
		value("CLIENT-A", 3, 450, 900), // 50% of 900 units
	}
	res := Aggregate(d, values, nil, testWindow(domain.GranularityDay))

	assert.InDelta(t, 100*460.0/910.0, res.Value, 1e-9)
	assert.NotEqual(t, 75.0, res.Value)
	assert.False(t, res.NoDenominator)
}

// TestAggregate_PartitionInvariant verifies recombining bucketed sums gives
// the same value as aggregating the whole set at once.
func TestAggregate_PartitionInvariant(t *testing.T) {
	d := def(t, "fpy")
	values := []RecordValue{
		value("CLIENT-A", 3, 95, 100),
		value("CLIENT-A", 10, 80, 90),
		value("CLIENT-A", 17, 120, 130),
		value("CLIENT-A", 24, 60, 75),
	}

	whole := Aggregate(d, values, nil, testWindow(domain.GranularityMonth))
	parts := Aggregate(d, values, nil, testWindow(domain.GranularityWeek))

	var num, den float64
	for _, b := range parts.Buckets {
		require.False(t, b.NoDenominator)
	}
	for _, v := range values {
		num += v.Numerator
		den += v.Denominator
	}
	require.Len(t, parts.Buckets, 4)
	assert.InDelta(t, 100*num/den, whole.Value, 1e-9)
	assert.InDelta(t, whole.Value, Aggregate(d, values, nil, testWindow(domain.GranularityDay)).Value, 1e-9)
}

// TestAggregate_WeekBuckets verifies week bucketing aligns to Monday.
func TestAggregate_WeekBuckets(t *testing.T) {
	d := def(t, "fpy")
	// 2026-08-05 is a Wednesday; its week starts Monday 2026-08-03.
	values := []RecordValue{value("CLIENT-A", 5, 9, 10)}
	res := Aggregate(d, values, nil, testWindow(domain.GranularityWeek))

	require.Len(t, res.Buckets, 1)
	assert.Equal(t, time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), res.Buckets[0].Key.PeriodStart)
}

// TestAggregate_GroupByClient verifies grouped buckets keep clients apart.
func TestAggregate_GroupByClient(t *testing.T) {
	d := def(t, "fpy")
	values := []RecordValue{
		value("CLIENT-A", 3, 90, 100),
		value("CLIENT-B", 3, 50, 100),
	}
	res := Aggregate(d, values, []domain.Dimension{domain.DimClient}, testWindow(domain.GranularityMonth))

	require.Len(t, res.Buckets, 2)
	assert.Equal(t, domain.ClientID("CLIENT-A"), res.Buckets[0].Key.Client)
	assert.InDelta(t, 90.0, res.Buckets[0].Value, 1e-9)
	assert.Equal(t, domain.ClientID("CLIENT-B"), res.Buckets[1].Key.Client)
	assert.InDelta(t, 50.0, res.Buckets[1].Value, 1e-9)
}

// TestAggregate_NoDenominator verifies a zero denominator flags the bucket
// instead of producing NaN or infinity.
func TestAggregate_NoDenominator(t *testing.T) {
	d := def(t, "otd")
	// Only partial shipments: every record contributes 0/0.
	values := []RecordValue{
		value("CLIENT-A", 3, 0, 0),
		value("CLIENT-A", 4, 0, 0),
	}
	res := Aggregate(d, values, nil, testWindow(domain.GranularityMonth))

	assert.True(t, res.NoDenominator)
	assert.Equal(t, 0.0, res.Value)
	require.Len(t, res.Buckets, 1)
	assert.True(t, res.Buckets[0].NoDenominator)
}

// TestAggregate_ConfidenceWeighting verifies bucket confidence follows each
// record's share of the denominator.
func TestAggregate_ConfidenceWeighting(t *testing.T) {
	d := def(t, "fpy")
	exact := domain.ResolvedInput{Field: domain.FieldUnitsPassed, Level: 0, Source: domain.SourceExact, Confidence: 1.0}
	rolled := domain.ResolvedInput{Field: domain.FieldUnitsPassed, Level: 3, Source: domain.SourceRollingAvg, Confidence: 0.5}

	values := []RecordValue{
		value("CLIENT-A", 3, 280, 300, exact), // confidence 1.0, weight 300
		value("CLIENT-A", 3, 90, 100, rolled), // confidence 0.5, weight 100
	}
	res := Aggregate(d, values, nil, testWindow(domain.GranularityMonth))

	want := (1.0*300 + 0.5*100) / 400
	assert.InDelta(t, want, res.Confidence, 1e-9)
}

// TestAggregate_ExcludedRecords verifies incomplete records are tallied,
// never guessed into the value.
func TestAggregate_ExcludedRecords(t *testing.T) {
	d := def(t, "fpy")
	rec := domain.RawRecord{ID: uuid.New(), ClientID: "CLIENT-A", Timestamp: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)}

	values := []RecordValue{
		value("CLIENT-A", 3, 90, 100),
		ExcludedRecord(rec, domain.FieldUnitsInspected),
	}
	res := Aggregate(d, values, nil, testWindow(domain.GranularityMonth))

	assert.Equal(t, 1, res.InsufficientDataCount)
	assert.InDelta(t, 90.0, res.Value, 1e-9)
	require.Len(t, res.PerRecord, 2)
	assert.True(t, res.PerRecord[1].Excluded)
	assert.Equal(t, domain.FieldUnitsInspected, res.PerRecord[1].MissingField)
}

// TestAggregateRTY verifies rolled yield multiplies aggregated stage yields
// in pipeline order: 0.98 × 0.95 × 0.99 = 92.21%.
func TestAggregateRTY(t *testing.T) {
	d := def(t, "rty")
	values := []RecordValue{
		stageValue(domain.StageCutting, 3, 98, 100),
		stageValue(domain.StageSewing, 3, 95, 100),
		stageValue(domain.StageAssembly, 3, 99, 100),
	}
	res := AggregateRTY(d, values, nil, testWindow(domain.GranularityMonth))

	assert.InDelta(t, 92.21, res.Value, 0.005)
	assert.False(t, res.NoDenominator)
}

// TestAggregateRTY_AtMostMinStage verifies RTY never exceeds the weakest
// stage yield.
func TestAggregateRTY_AtMostMinStage(t *testing.T) {
	d := def(t, "rty")
	values := []RecordValue{
		stageValue(domain.StageCutting, 3, 99, 100),
		stageValue(domain.StageSewing, 3, 80, 100),
		stageValue(domain.StageQC, 3, 97, 100),
		stageValue(domain.StagePacking, 3, 91, 100),
	}
	res := AggregateRTY(d, values, nil, testWindow(domain.GranularityMonth))

	assert.LessOrEqual(t, res.Value, 80.0)
}

// TestAggregateRTY_AggregatesStagesFirst verifies stage yields aggregate
// ratio-correct before multiplication, not per-record products.
func TestAggregateRTY_AggregatesStagesFirst(t *testing.T) {
	d := def(t, "rty")
	values := []RecordValue{
		stageValue(domain.StageSewing, 3, 10, 10),
		stageValue(domain.StageSewing, 4, 450, 900),
	}
	res := AggregateRTY(d, values, nil, testWindow(domain.GranularityMonth))

	// Single-stage RTY equals that stage's aggregated yield.
	assert.InDelta(t, 100*460.0/910.0, res.Value, 1e-9)
}

// TestAggregateComposite verifies component fractions multiply and that a
// missing component flags the bucket.
func TestAggregateComposite(t *testing.T) {
	d := def(t, "oee")
	order := []string{"availability", "performance", "fpy"}

	components := map[string][]RecordValue{
		"availability": {value("CLIENT-A", 3, 36, 40)},  // 0.90
		"performance":  {value("CLIENT-A", 3, 38, 40)},  // 0.95
		"fpy":          {value("CLIENT-A", 3, 485, 500)}, // 0.97
	}
	res := AggregateComposite(d, order, components, nil, testWindow(domain.GranularityMonth))
	assert.InDelta(t, 100*0.90*0.95*0.97, res.Value, 1e-9)
	assert.False(t, res.NoDenominator)

	delete(components, "performance")
	res = AggregateComposite(d, order, components, nil, testWindow(domain.GranularityMonth))
	assert.True(t, res.NoDenominator)
}
