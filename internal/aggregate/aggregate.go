// Package aggregate buckets per-record metric contributions by time window
// and grouping dimensions and combines them with ratio-correct math:
// sum-of-numerators over sum-of-denominators, never the mean of per-record
// ratios.
package aggregate

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
)

// RecordValue is one record's contribution to a metric before aggregation.
type RecordValue struct {
	RecordID   uuid.UUID
	ClientID   domain.ClientID
	Timestamp  time.Time
	Shift      string
	StyleModel string
	Operation  string
	Stage      domain.Stage

	Numerator   float64
	Denominator float64
	Inputs      []domain.ResolvedInput

	Excluded     bool
	MissingField domain.Field
}

// FromRecord builds a contribution for a record whose inputs all resolved.
func FromRecord(rec domain.RawRecord, num, den float64, inputs []domain.ResolvedInput) RecordValue {
	v := newValue(rec)
	v.Numerator = num
	v.Denominator = den
	v.Inputs = inputs
	return v
}

// ExcludedRecord builds a contribution for a record that hit FlagIncomplete
// on a required field. It never adds a guessed value; it is only tallied.
func ExcludedRecord(rec domain.RawRecord, missing domain.Field) RecordValue {
	v := newValue(rec)
	v.Excluded = true
	v.MissingField = missing
	return v
}

func newValue(rec domain.RawRecord) RecordValue {
	return RecordValue{
		RecordID:   rec.ID,
		ClientID:   rec.ClientID,
		Timestamp:  rec.Timestamp,
		Shift:      rec.Shift,
		StyleModel: rec.StyleModel,
		Operation:  rec.Operation,
		Stage:      rec.Stage,
	}
}

// Confidence is the record-level confidence: the mean of its resolved input
// confidences, 1.0 when nothing needed resolving.
func (v RecordValue) Confidence() float64 {
	if len(v.Inputs) == 0 {
		return 1.0
	}
	var sum float64
	for _, in := range v.Inputs {
		sum += in.Confidence
	}
	return sum / float64(len(v.Inputs))
}

// accumulator collects one bucket.
type accumulator struct {
	num, den     float64
	confWeighted float64
	confWeight   float64
	records      int
	insufficient int
	breakdown    map[int]int
}

func newAccumulator() *accumulator {
	return &accumulator{breakdown: make(map[int]int)}
}

func (a *accumulator) add(v RecordValue) {
	if v.Excluded {
		a.insufficient++
		return
	}
	a.records++
	a.num += v.Numerator
	a.den += v.Denominator
	for _, in := range v.Inputs {
		a.breakdown[in.Level]++
	}
	// Confidence weights follow each record's share of the denominator.
	if v.Denominator > 0 {
		a.confWeighted += v.Confidence() * v.Denominator
		a.confWeight += v.Denominator
	}
}

func (a *accumulator) confidence() float64 {
	if a.confWeight == 0 {
		return 0
	}
	return a.confWeighted / a.confWeight
}

// Aggregate combines ratio-metric contributions into a MetricResult.
func Aggregate(def *metrics.Definition, values []RecordValue, groupBy []domain.Dimension, window domain.Window) *domain.MetricResult {
	res := newResult(def, groupBy, window)

	overall := newAccumulator()
	buckets := make(map[domain.BucketKey]*accumulator)
	for _, v := range values {
		overall.add(v)
		key := bucketKey(v, groupBy, window.Granularity)
		acc, ok := buckets[key]
		if !ok {
			acc = newAccumulator()
			buckets[key] = acc
		}
		acc.add(v)
		res.PerRecord = append(res.PerRecord, contribution(v))
	}

	res.InsufficientDataCount = overall.insufficient
	res.Value, res.NoDenominator = ratioValue(def.Scale, overall.num, overall.den)
	res.Confidence = overall.confidence()

	for key, acc := range buckets {
		value, noDen := ratioValue(def.Scale, acc.num, acc.den)
		res.Buckets = append(res.Buckets, domain.BucketResult{
			Key:                   key,
			Value:                 value,
			Confidence:            acc.confidence(),
			NoDenominator:         noDen,
			RecordCount:           acc.records,
			InsufficientDataCount: acc.insufficient,
			FallbackBreakdown:     acc.breakdown,
		})
	}
	sortBuckets(res.Buckets)
	return res
}

// AggregateRTY combines per-record yield contributions into rolled
// throughput yield: each stage's yield is aggregated with the ratio rule
// first, then the aggregated stage yields are multiplied in fixed pipeline
// order. Never the product of per-record yields.
func AggregateRTY(def *metrics.Definition, values []RecordValue, groupBy []domain.Dimension, window domain.Window) *domain.MetricResult {
	res := newResult(def, groupBy, window)

	type stageAcc map[domain.Stage]*accumulator
	overallStages := make(stageAcc)
	overall := newAccumulator()
	buckets := make(map[domain.BucketKey]stageAcc)
	bucketTotals := make(map[domain.BucketKey]*accumulator)

	addStage := func(sa stageAcc, v RecordValue) {
		acc, ok := sa[v.Stage]
		if !ok {
			acc = newAccumulator()
			sa[v.Stage] = acc
		}
		acc.add(v)
	}

	for _, v := range values {
		overall.add(v)
		addStage(overallStages, v)

		key := bucketKey(v, groupBy, window.Granularity)
		sa, ok := buckets[key]
		if !ok {
			sa = make(stageAcc)
			buckets[key] = sa
			bucketTotals[key] = newAccumulator()
		}
		addStage(sa, v)
		bucketTotals[key].add(v)
		res.PerRecord = append(res.PerRecord, contribution(v))
	}

	res.InsufficientDataCount = overall.insufficient
	res.Value, res.NoDenominator = rolledYield(def.Scale, overallStages)
	res.Confidence = overall.confidence()

	for key, sa := range buckets {
		total := bucketTotals[key]
		value, noDen := rolledYield(def.Scale, sa)
		res.Buckets = append(res.Buckets, domain.BucketResult{
			Key:                   key,
			Value:                 value,
			Confidence:            total.confidence(),
			NoDenominator:         noDen,
			RecordCount:           total.records,
			InsufficientDataCount: total.insufficient,
			FallbackBreakdown:     total.breakdown,
		})
	}
	sortBuckets(res.Buckets)
	return res
}

// AggregateComposite combines several component ratio-metric contribution
// sets by multiplying their aggregated fractions per bucket, for metrics
// like overall equipment effectiveness. componentValues is keyed by
// component name; componentOrder fixes the multiplication order.
func AggregateComposite(def *metrics.Definition, componentOrder []string, componentValues map[string][]RecordValue, groupBy []domain.Dimension, window domain.Window) *domain.MetricResult {
	res := newResult(def, groupBy, window)

	type comps map[string]*accumulator
	overall := make(comps)
	confAll := newAccumulator()
	buckets := make(map[domain.BucketKey]comps)
	bucketConf := make(map[domain.BucketKey]*accumulator)

	for _, name := range componentOrder {
		overall[name] = newAccumulator()
		for _, v := range componentValues[name] {
			overall[name].add(v)
			confAll.add(v)

			key := bucketKey(v, groupBy, window.Granularity)
			cs, ok := buckets[key]
			if !ok {
				cs = make(comps)
				for _, n := range componentOrder {
					cs[n] = newAccumulator()
				}
				buckets[key] = cs
				bucketConf[key] = newAccumulator()
			}
			cs[name].add(v)
			bucketConf[key].add(v)
			res.PerRecord = append(res.PerRecord, contribution(v))
		}
	}

	res.InsufficientDataCount = confAll.insufficient
	res.Value, res.NoDenominator = compositeValue(def.Scale, componentOrder, overall)
	res.Confidence = confAll.confidence()

	for key, cs := range buckets {
		conf := bucketConf[key]
		value, noDen := compositeValue(def.Scale, componentOrder, cs)
		res.Buckets = append(res.Buckets, domain.BucketResult{
			Key:                   key,
			Value:                 value,
			Confidence:            conf.confidence(),
			NoDenominator:         noDen,
			RecordCount:           conf.records,
			InsufficientDataCount: conf.insufficient,
			FallbackBreakdown:     conf.breakdown,
		})
	}
	sortBuckets(res.Buckets)
	return res
}

// ratioValue applies the metric scale to an aggregated ratio. A zero
// denominator yields a flagged result, never NaN or infinity.
func ratioValue(scale, num, den float64) (value float64, noDenominator bool) {
	if den == 0 {
		return 0, true
	}
	return scale * num / den, false
}

func rolledYield(scale float64, stages map[domain.Stage]*accumulator) (float64, bool) {
	product := 1.0
	seen := false
	for _, stage := range domain.StageOrder {
		acc, ok := stages[stage]
		if !ok || acc.den == 0 {
			continue
		}
		product *= acc.num / acc.den
		seen = true
	}
	if !seen {
		return 0, true
	}
	return scale * product, false
}

func compositeValue(scale float64, order []string, components map[string]*accumulator) (float64, bool) {
	product := 1.0
	for _, name := range order {
		acc := components[name]
		if acc == nil || acc.den == 0 {
			return 0, true
		}
		product *= acc.num / acc.den
	}
	return scale * product, false
}

func newResult(def *metrics.Definition, groupBy []domain.Dimension, window domain.Window) *domain.MetricResult {
	return &domain.MetricResult{
		Metric:    def.Name,
		Unit:      def.Unit,
		Direction: def.Direction,
		Target:    def.Target,
		Window:    window,
		GroupBy:   groupBy,
	}
}

func contribution(v RecordValue) domain.RecordContribution {
	return domain.RecordContribution{
		RecordID:     v.RecordID,
		ClientID:     v.ClientID,
		Numerator:    v.Numerator,
		Denominator:  v.Denominator,
		Confidence:   v.Confidence(),
		Inputs:       v.Inputs,
		Excluded:     v.Excluded,
		MissingField: v.MissingField,
	}
}

func bucketKey(v RecordValue, groupBy []domain.Dimension, granularity domain.Granularity) domain.BucketKey {
	key := domain.BucketKey{PeriodStart: truncate(v.Timestamp, granularity)}
	for _, dim := range groupBy {
		switch dim {
		case domain.DimClient:
			key.Client = v.ClientID
		case domain.DimShift:
			key.Shift = v.Shift
		case domain.DimStyleModel:
			key.StyleModel = v.StyleModel
		case domain.DimOperation:
			key.Operation = v.Operation
		case domain.DimStage:
			key.Stage = v.Stage
		}
	}
	return key
}

// truncate aligns a timestamp to the start of its period in UTC. Weeks
// start on Monday.
func truncate(ts time.Time, granularity domain.Granularity) time.Time {
	ts = ts.UTC()
	switch granularity {
	case domain.GranularityWeek:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case domain.GranularityMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func sortBuckets(buckets []domain.BucketResult) {
	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i].Key, buckets[j].Key
		if !a.PeriodStart.Equal(b.PeriodStart) {
			return a.PeriodStart.Before(b.PeriodStart)
		}
		if a.Client != b.Client {
			return a.Client < b.Client
		}
		if a.Shift != b.Shift {
			return a.Shift < b.Shift
		}
		if a.StyleModel != b.StyleModel {
			return a.StyleModel < b.StyleModel
		}
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		return a.Stage < b.Stage
	})
}
