package repositories

import (
	"context"
	"fmt"
	"time"

	"ShiftMetrics/internal/models/domain"
)

// fieldColumns whitelists the numeric columns a rolling average may target.
// The field name always goes through this map, never into SQL directly.
var fieldColumns = map[domain.Field]string{
	domain.FieldUnitsProduced:           "units_produced",
	domain.FieldIdealCycleTime:          "ideal_cycle_time",
	domain.FieldPlannedCycleTime:        "planned_cycle_time",
	domain.FieldSMVMinutes:              "smv_minutes",
	domain.FieldEmployeesAssigned:       "employees_assigned",
	domain.FieldHeadcount:               "headcount",
	domain.FieldScheduledHours:          "scheduled_hours",
	domain.FieldShiftHours:              "shift_hours",
	domain.FieldRunTimeHours:            "run_time_hours",
	domain.FieldDowntimeHours:           "downtime_hours",
	domain.FieldUnitsInspected:          "units_inspected",
	domain.FieldUnitsPassed:             "units_passed",
	domain.FieldDefectiveUnits:          "defective_units",
	domain.FieldTotalDefects:            "total_defects",
	domain.FieldOpportunitiesPerUnit:    "opportunities_per_unit",
	domain.FieldQuantityCompleted:       "quantity_completed",
	domain.FieldPlannedQuantity:         "planned_quantity",
	domain.FieldCompletedOnTime:         "completed_on_time",
	domain.FieldDaysLate:                "days_late",
	domain.FieldAbsenceHours:            "absence_hours",
	domain.FieldPlannedLeaveHours:       "planned_leave_hours",
	domain.FieldUnscheduledAbsenceHours: "unscheduled_absence_hours",
	domain.FieldTotalScheduledHours:     "total_scheduled_hours",
}

// RollingAverage returns the trailing average of a field over the windowDays
// before asOf, grouped by (client, styleModel), plus the sample count. Zero
// samples means the fallback is unusable, not that the average is zero.
func (r *Repository) RollingAverage(ctx context.Context, client domain.ClientID, styleModel string, field domain.Field, windowDays int, asOf time.Time) (float64, int, error) {
	op := "Repository.RollingAverage"

	column, ok := fieldColumns[field]
	if !ok {
		return 0, 0, fmt.Errorf("%s: no column for field %q", op, field)
	}

	query := fmt.Sprintf(`SELECT COALESCE(AVG(%[1]s), 0), COUNT(%[1]s)
		FROM shift_records
		WHERE client_id = $1 AND style_model = $2
		AND ts >= $3 AND ts < $4
		AND %[1]s IS NOT NULL`, column)

	from := asOf.AddDate(0, 0, -windowDays)
	var avg float64
	var samples int
	err := r.DB.QueryRowContext(ctx, query, string(client), styleModel, from, asOf).
		Scan(&avg, &samples)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return avg, samples, nil
}
