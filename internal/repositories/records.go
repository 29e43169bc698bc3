package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ShiftMetrics/internal/access"
	"ShiftMetrics/internal/models/domain"
	modelrepo "ShiftMetrics/internal/models/repositories"
	"ShiftMetrics/internal/utils/logger/sl"
)

const recordColumns = `id, client_id, ts, shift, style_model, operation, stage, leave_type,
	units_produced, ideal_cycle_time, planned_cycle_time, smv_minutes,
	employees_assigned, headcount, scheduled_hours, shift_hours,
	run_time_hours, downtime_hours, units_inspected, units_passed,
	defective_units, total_defects, opportunities_per_unit,
	quantity_completed, planned_quantity, completed_on_time, days_late,
	absence_hours, planned_leave_hours, unscheduled_absence_hours,
	total_scheduled_hours, created_at`

// Fetch returns the shift records inside the window that pass both the
// access-scope predicate and the caller-supplied filter. The predicate is
// applied inside the query; rows outside a restricted scope never leave the
// database. Rows failing canonical validation are skipped and counted, they
// are never handed to inference.
func (r *Repository) Fetch(ctx context.Context, pred *access.Predicate, filter domain.RecordFilter, window domain.Window) ([]domain.RawRecord, error) {
	op := "Repository.Fetch"

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT %s FROM shift_records WHERE ts >= $1 AND ts < $2`, recordColumns)
	args := []interface{}{window.From, window.To}

	if pred != nil {
		clients := make([]string, len(pred.Clients))
		for i, c := range pred.Clients {
			clients[i] = string(c)
		}
		args = append(args, pq.Array(clients))
		fmt.Fprintf(&sb, " AND %s = ANY($%d)", pred.Field, len(args))
	}
	if len(filter.Clients) > 0 {
		clients := make([]string, len(filter.Clients))
		for i, c := range filter.Clients {
			clients[i] = string(c)
		}
		args = append(args, pq.Array(clients))
		fmt.Fprintf(&sb, " AND client_id = ANY($%d)", len(args))
	}
	if filter.Shift != "" {
		args = append(args, filter.Shift)
		fmt.Fprintf(&sb, " AND shift = $%d", len(args))
	}
	if filter.StyleModel != "" {
		args = append(args, filter.StyleModel)
		fmt.Fprintf(&sb, " AND style_model = $%d", len(args))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		fmt.Fprintf(&sb, " AND operation = $%d", len(args))
	}
	if filter.Stage != "" {
		args = append(args, string(filter.Stage))
		fmt.Fprintf(&sb, " AND stage = $%d", len(args))
	}
	sb.WriteString(" ORDER BY ts, id")

	var rows []modelrepo.ShiftRecordRow
	if err := r.DB.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records := make([]domain.RawRecord, 0, len(rows))
	invalid := 0
	for _, row := range rows {
		if err := r.validate.Struct(row); err != nil {
			invalid++
			r.log.Warn("skipping invalid shift record",
				slog.String("recordID", row.ID.String()),
				sl.Err(err))
			continue
		}
		records = append(records, row.Domain())
	}
	if invalid > 0 {
		r.log.Warn("invalid shift records skipped", slog.Int("count", invalid))
	}
	return records, nil
}

// GetRecordByID returns a single shift record.
func (r *Repository) GetRecordByID(ctx context.Context, id uuid.UUID) (*domain.RawRecord, error) {
	op := "Repository.GetRecordByID"

	query := fmt.Sprintf(`SELECT %s FROM shift_records WHERE id = $1`, recordColumns)
	var row modelrepo.ShiftRecordRow
	if err := r.DB.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.validate.Struct(row); err != nil {
		return nil, fmt.Errorf("%s: invalid record: %w", op, err)
	}
	rec := row.Domain()
	return &rec, nil
}
