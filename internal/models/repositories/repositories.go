// Package repositories holds the canonical database row shape of a shift
// record. The inference and formula layers never see raw rows; every row is
// validated here and converted to the single canonical domain.RawRecord
// shape before it leaves the repository.
package repositories

import (
	"time"

	"github.com/google/uuid"

	"ShiftMetrics/internal/models/domain"
)

// ShiftRecordRow is one row of shift_records. Numeric facts are nullable:
// NULL means "not measured", never zero.
type ShiftRecordRow struct {
	ID         uuid.UUID `db:"id"`
	ClientID   string    `db:"client_id" validate:"required"`
	Timestamp  time.Time `db:"ts" validate:"required"`
	Shift      *string   `db:"shift"`
	StyleModel *string   `db:"style_model"`
	Operation  *string   `db:"operation"`
	Stage      *string   `db:"stage" validate:"omitempty,oneof=CUTTING SEWING ASSEMBLY QC PACKING"`
	LeaveType  *string   `db:"leave_type"`

	UnitsProduced           *float64 `db:"units_produced" validate:"omitempty,gte=0"`
	IdealCycleTime          *float64 `db:"ideal_cycle_time" validate:"omitempty,gt=0"`
	PlannedCycleTime        *float64 `db:"planned_cycle_time" validate:"omitempty,gt=0"`
	SMVMinutes              *float64 `db:"smv_minutes" validate:"omitempty,gt=0"`
	EmployeesAssigned       *float64 `db:"employees_assigned" validate:"omitempty,gte=0"`
	Headcount               *float64 `db:"headcount" validate:"omitempty,gte=0"`
	ScheduledHours          *float64 `db:"scheduled_hours" validate:"omitempty,gte=0"`
	ShiftHours              *float64 `db:"shift_hours" validate:"omitempty,gte=0"`
	RunTimeHours            *float64 `db:"run_time_hours" validate:"omitempty,gte=0"`
	DowntimeHours           *float64 `db:"downtime_hours" validate:"omitempty,gte=0"`
	UnitsInspected          *float64 `db:"units_inspected" validate:"omitempty,gte=0"`
	UnitsPassed             *float64 `db:"units_passed" validate:"omitempty,gte=0"`
	DefectiveUnits          *float64 `db:"defective_units" validate:"omitempty,gte=0"`
	TotalDefects            *float64 `db:"total_defects" validate:"omitempty,gte=0"`
	OpportunitiesPerUnit    *float64 `db:"opportunities_per_unit" validate:"omitempty,gt=0"`
	QuantityCompleted       *float64 `db:"quantity_completed" validate:"omitempty,gte=0"`
	PlannedQuantity         *float64 `db:"planned_quantity" validate:"omitempty,gt=0"`
	CompletedOnTime         *float64 `db:"completed_on_time" validate:"omitempty,oneof=0 1"`
	DaysLate                *float64 `db:"days_late"`
	AbsenceHours            *float64 `db:"absence_hours" validate:"omitempty,gte=0"`
	PlannedLeaveHours       *float64 `db:"planned_leave_hours" validate:"omitempty,gte=0"`
	UnscheduledAbsenceHours *float64 `db:"unscheduled_absence_hours" validate:"omitempty,gte=0"`
	TotalScheduledHours     *float64 `db:"total_scheduled_hours" validate:"omitempty,gte=0"`

	CreatedAt time.Time `db:"created_at"`
}

// Domain converts the row into the canonical record shape. Only present
// (non-NULL) facts enter the Fields map.
func (r ShiftRecordRow) Domain() domain.RawRecord {
	rec := domain.RawRecord{
		ID:        r.ID,
		ClientID:  domain.ClientID(r.ClientID),
		Timestamp: r.Timestamp,
		Fields:    make(map[domain.Field]float64),
	}
	if r.Shift != nil {
		rec.Shift = *r.Shift
	}
	if r.StyleModel != nil {
		rec.StyleModel = *r.StyleModel
	}
	if r.Operation != nil {
		rec.Operation = *r.Operation
	}
	if r.Stage != nil {
		rec.Stage = domain.Stage(*r.Stage)
	}
	if r.LeaveType != nil {
		rec.LeaveType = *r.LeaveType
	}

	set := func(f domain.Field, v *float64) {
		if v != nil {
			rec.Fields[f] = *v
		}
	}
	set(domain.FieldUnitsProduced, r.UnitsProduced)
	set(domain.FieldIdealCycleTime, r.IdealCycleTime)
	set(domain.FieldPlannedCycleTime, r.PlannedCycleTime)
	set(domain.FieldSMVMinutes, r.SMVMinutes)
	set(domain.FieldEmployeesAssigned, r.EmployeesAssigned)
	set(domain.FieldHeadcount, r.Headcount)
	set(domain.FieldScheduledHours, r.ScheduledHours)
	set(domain.FieldShiftHours, r.ShiftHours)
	set(domain.FieldRunTimeHours, r.RunTimeHours)
	set(domain.FieldDowntimeHours, r.DowntimeHours)
	set(domain.FieldUnitsInspected, r.UnitsInspected)
	set(domain.FieldUnitsPassed, r.UnitsPassed)
	set(domain.FieldDefectiveUnits, r.DefectiveUnits)
	set(domain.FieldTotalDefects, r.TotalDefects)
	set(domain.FieldOpportunitiesPerUnit, r.OpportunitiesPerUnit)
	set(domain.FieldQuantityCompleted, r.QuantityCompleted)
	set(domain.FieldPlannedQuantity, r.PlannedQuantity)
	set(domain.FieldCompletedOnTime, r.CompletedOnTime)
	set(domain.FieldDaysLate, r.DaysLate)
	set(domain.FieldAbsenceHours, r.AbsenceHours)
	set(domain.FieldPlannedLeaveHours, r.PlannedLeaveHours)
	set(domain.FieldUnscheduledAbsenceHours, r.UnscheduledAbsenceHours)
	set(domain.FieldTotalScheduledHours, r.TotalScheduledHours)

	return rec
}
