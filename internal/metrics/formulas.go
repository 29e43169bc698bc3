package metrics

import (
	"ShiftMetrics/internal/models/domain"
)

// Inputs holds one record's resolved values keyed by required field.
type Inputs map[domain.Field]float64

// RatioFunc is one metric's pure per-record formula. It returns the raw
// numerator and denominator; scaling and denominator-zero handling belong to
// aggregation. No I/O, no side effects.
type RatioFunc func(rec domain.RawRecord, in Inputs) (num, den float64)

// newRatioFuncs binds the per-record formulas. plannedLeave is the set of
// leave types that never count as unscheduled absence.
func newRatioFuncs(plannedLeave map[string]struct{}) map[string]RatioFunc {
	return map[string]RatioFunc{
		"efficiency": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldUnitsProduced] * in[domain.FieldIdealCycleTime],
				in[domain.FieldEmployeesAssigned] * in[domain.FieldScheduledHours]
		},
		"performance": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldIdealCycleTime] * in[domain.FieldUnitsProduced],
				in[domain.FieldRunTimeHours]
		},
		"availability": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldScheduledHours] - in[domain.FieldDowntimeHours],
				in[domain.FieldScheduledHours]
		},
		"ppm": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldDefectiveUnits], in[domain.FieldUnitsInspected]
		},
		"dpmo": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldTotalDefects],
				in[domain.FieldUnitsInspected] * in[domain.FieldOpportunitiesPerUnit]
		},
		"fpy": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			return in[domain.FieldUnitsPassed], in[domain.FieldUnitsInspected]
		},
		"otd": func(_ domain.RawRecord, in Inputs) (float64, float64) {
			// Only fully completed orders enter the rate; partial shipments
			// count neither on time nor late.
			if in[domain.FieldQuantityCompleted] != in[domain.FieldPlannedQuantity] {
				return 0, 0
			}
			if in[domain.FieldCompletedOnTime] > 0 {
				return 1, 1
			}
			return 0, 1
		},
		"absenteeism": func(rec domain.RawRecord, in Inputs) (float64, float64) {
			num := in[domain.FieldUnscheduledAbsenceHours]
			if _, planned := plannedLeave[rec.LeaveType]; planned {
				num = 0
			}
			return num, in[domain.FieldTotalScheduledHours]
		},
	}
}

// DerivationFunc computes a missing field from other fields present on the
// same record. It reports false when the inputs it needs are absent.
type DerivationFunc func(rec domain.RawRecord) (float64, bool)

// derivations holds the named level-2 fallback computations the catalog may
// reference. Keyed by the name used in kpi_catalog.yaml.
var derivations = map[string]DerivationFunc{
	"smvToHours": func(rec domain.RawRecord) (float64, bool) {
		smv, ok := rec.Get(domain.FieldSMVMinutes)
		if !ok {
			return 0, false
		}
		return smv / 60, true
	},
	"runTimeFromSchedule": func(rec domain.RawRecord) (float64, bool) {
		sched, ok1 := rec.Get(domain.FieldScheduledHours)
		down, ok2 := rec.Get(domain.FieldDowntimeHours)
		if !ok1 || !ok2 {
			return 0, false
		}
		return max(sched-down, 0), true
	},
	"downtimeFromRunTime": func(rec domain.RawRecord) (float64, bool) {
		sched, ok1 := rec.Get(domain.FieldScheduledHours)
		run, ok2 := rec.Get(domain.FieldRunTimeHours)
		if !ok1 || !ok2 {
			return 0, false
		}
		return max(sched-run, 0), true
	},
	"passedFromDefects": func(rec domain.RawRecord) (float64, bool) {
		inspected, ok1 := rec.Get(domain.FieldUnitsInspected)
		defective, ok2 := rec.Get(domain.FieldDefectiveUnits)
		if !ok1 || !ok2 {
			return 0, false
		}
		return max(inspected-defective, 0), true
	},
	"defectsFromPassed": func(rec domain.RawRecord) (float64, bool) {
		inspected, ok1 := rec.Get(domain.FieldUnitsInspected)
		passed, ok2 := rec.Get(domain.FieldUnitsPassed)
		if !ok1 || !ok2 {
			return 0, false
		}
		return max(inspected-passed, 0), true
	},
	"onTimeFromDaysLate": func(rec domain.RawRecord) (float64, bool) {
		late, ok := rec.Get(domain.FieldDaysLate)
		if !ok {
			return 0, false
		}
		if late <= 0 {
			return 1, true
		}
		return 0, true
	},
	"unscheduledFromTotals": func(rec domain.RawRecord) (float64, bool) {
		total, ok1 := rec.Get(domain.FieldAbsenceHours)
		planned, ok2 := rec.Get(domain.FieldPlannedLeaveHours)
		if !ok1 || !ok2 {
			return 0, false
		}
		return max(total-planned, 0), true
	},
}

// Derivation looks up a named derivation function.
func Derivation(name string) (DerivationFunc, bool) {
	fn, ok := derivations[name]
	return fn, ok
}
