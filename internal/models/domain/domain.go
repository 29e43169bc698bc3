package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a caller's role tier.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RolePowerUser Role = "POWERUSER"
	RoleLeader    Role = "LEADER"
	RoleOperator  Role = "OPERATOR"
)

// Unrestricted reports whether the role may see every client's data.
func (r Role) Unrestricted() bool {
	return r == RoleAdmin || r == RolePowerUser
}

// ParseRole converts a raw role string into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RolePowerUser:
		return RolePowerUser, nil
	case RoleLeader:
		return RoleLeader, nil
	case RoleOperator:
		return RoleOperator, nil
	}
	return "", &ConfigurationError{Reason: "unknown role: " + raw}
}

// ClientID identifies a tenant. Client codes come from the upstream
// authentication collaborator as plain strings (e.g. "CLIENT-A").
type ClientID string

// CallerContext is the resolved identity of one request's caller.
// It is built once per request and discarded afterwards.
type CallerContext struct {
	Role            Role
	AssignedClients map[ClientID]struct{}
}

// NewCallerContext builds a CallerContext from the authentication
// collaborator's raw comma-separated client list.
//
// LEADER and OPERATOR must carry at least one assigned client; an empty
// assignment is a setup problem and is never interpreted as "all clients".
func NewCallerContext(role Role, assignedClientsRaw string) (*CallerContext, error) {
	clients := make(map[ClientID]struct{})
	for _, part := range strings.Split(assignedClientsRaw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clients[ClientID(part)] = struct{}{}
	}

	if !role.Unrestricted() && len(clients) == 0 {
		return nil, &ConfigurationError{
			Reason: "role " + string(role) + " requires at least one assigned client",
		}
	}

	return &CallerContext{Role: role, AssignedClients: clients}, nil
}

// Scope is the set of clients a caller may touch: either unrestricted or an
// explicit client set. Immutable after creation.
type Scope struct {
	unrestricted bool
	clients      map[ClientID]struct{}
}

// UnrestrictedScope returns the scope that allows every client.
func UnrestrictedScope() Scope {
	return Scope{unrestricted: true}
}

// RestrictedTo returns a scope limited to the given clients.
func RestrictedTo(clients map[ClientID]struct{}) Scope {
	// Copy so later mutation of the argument cannot widen the scope.
	cp := make(map[ClientID]struct{}, len(clients))
	for c := range clients {
		cp[c] = struct{}{}
	}
	return Scope{clients: cp}
}

// IsUnrestricted reports whether the scope allows every client.
func (s Scope) IsUnrestricted() bool { return s.unrestricted }

// Allows reports whether the scope permits access to the given client.
func (s Scope) Allows(client ClientID) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.clients[client]
	return ok
}

// Clients returns the explicit client set, nil when unrestricted.
func (s Scope) Clients() []ClientID {
	if s.unrestricted {
		return nil
	}
	out := make([]ClientID, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

// Field names a numeric fact on a shift record.
type Field string

const (
	FieldUnitsProduced           Field = "unitsProduced"
	FieldIdealCycleTime          Field = "idealCycleTime"
	FieldPlannedCycleTime        Field = "plannedCycleTime"
	FieldSMVMinutes              Field = "smvMinutes"
	FieldEmployeesAssigned       Field = "employeesAssigned"
	FieldHeadcount               Field = "headcount"
	FieldScheduledHours          Field = "scheduledHours"
	FieldShiftHours              Field = "shiftHours"
	FieldRunTimeHours            Field = "runTimeHours"
	FieldDowntimeHours           Field = "downtimeHours"
	FieldUnitsInspected          Field = "unitsInspected"
	FieldUnitsPassed             Field = "unitsPassed"
	FieldDefectiveUnits          Field = "defectiveUnits"
	FieldTotalDefects            Field = "totalDefects"
	FieldOpportunitiesPerUnit    Field = "opportunitiesPerUnit"
	FieldQuantityCompleted       Field = "quantityCompleted"
	FieldPlannedQuantity         Field = "plannedQuantity"
	FieldCompletedOnTime         Field = "completedOnTime"
	FieldDaysLate                Field = "daysLate"
	FieldAbsenceHours            Field = "absenceHours"
	FieldPlannedLeaveHours       Field = "plannedLeaveHours"
	FieldUnscheduledAbsenceHours Field = "unscheduledAbsenceHours"
	FieldTotalScheduledHours     Field = "totalScheduledHours"
)

// Stage identifies a production pipeline stage. The order of the pipeline is
// fixed; rolled yield multiplies stage yields in this order.
type Stage string

const (
	StageCutting  Stage = "CUTTING"
	StageSewing   Stage = "SEWING"
	StageAssembly Stage = "ASSEMBLY"
	StageQC       Stage = "QC"
	StagePacking  Stage = "PACKING"
)

// StageOrder is the fixed production pipeline order.
var StageOrder = []Stage{StageCutting, StageSewing, StageAssembly, StageQC, StagePacking}

// RawRecord is one shift-level operational fact supplied by the record
// repository. The engine treats it as read-only input. Fields holds the
// numeric facts actually present on the record; absence means the fact was
// not measured, never that it was zero.
type RawRecord struct {
	ID         uuid.UUID
	ClientID   ClientID
	Timestamp  time.Time
	Shift      string
	StyleModel string
	Operation  string
	Stage      Stage
	LeaveType  string
	Fields     map[Field]float64
}

// Has reports whether the record carries the field.
func (r RawRecord) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// Get returns a field value and whether it is present.
func (r RawRecord) Get(f Field) (float64, bool) {
	v, ok := r.Fields[f]
	return v, ok
}

// FallbackSource labels where a resolved input value came from.
type FallbackSource string

const (
	SourceExact      FallbackSource = "exact"
	SourceAlternate  FallbackSource = "alternate"
	SourceDerived    FallbackSource = "derived"
	SourceRollingAvg FallbackSource = "rolling-avg"
	SourceDefault    FallbackSource = "default"
	SourceNone       FallbackSource = "none"
)

// ResolvedInput is the outcome of filling one required field for one record.
type ResolvedInput struct {
	Field      Field
	Value      float64
	Level      int
	Source     FallbackSource
	Confidence float64
}

// Incomplete reports whether every fallback was exhausted. An incomplete
// input excludes its record from the metric, it is never guessed.
func (in ResolvedInput) Incomplete() bool { return in.Source == SourceNone }

// Granularity is the time bucket size for aggregation.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Window is the half-open time range [From, To) a computation covers.
type Window struct {
	From        time.Time
	To          time.Time
	Granularity Granularity
}

// Dimension is a grouping axis for aggregation.
type Dimension string

const (
	DimClient     Dimension = "client"
	DimShift      Dimension = "shift"
	DimStyleModel Dimension = "styleModel"
	DimOperation  Dimension = "operation"
	DimStage      Dimension = "stage"
)

// Direction states whether larger metric values are better.
type Direction string

const (
	HigherIsBetter Direction = "higher-better"
	LowerIsBetter  Direction = "lower-better"
)

// RecordFilter carries caller-supplied narrowing; it composes with the
// access-scope predicate via logical AND, it can never widen it.
type RecordFilter struct {
	Clients    []ClientID
	Shift      string
	StyleModel string
	Operation  string
	Stage      Stage
}

// BucketKey identifies one aggregation bucket: a period start plus the
// grouped dimension values (empty when the dimension is not grouped).
type BucketKey struct {
	PeriodStart time.Time
	Client      ClientID
	Shift       string
	StyleModel  string
	Operation   string
	Stage       Stage
}

// RecordContribution is the audit trail of one record inside a result:
// what it contributed and how much of it was inferred.
type RecordContribution struct {
	RecordID     uuid.UUID
	ClientID     ClientID
	Numerator    float64
	Denominator  float64
	Confidence   float64
	Inputs       []ResolvedInput
	Excluded     bool
	MissingField Field
}

// BucketResult is one aggregated bucket of a metric.
type BucketResult struct {
	Key                   BucketKey
	Value                 float64
	Confidence            float64
	NoDenominator         bool
	RecordCount           int
	InsufficientDataCount int
	FallbackBreakdown     map[int]int // fallback level -> resolved input count
}

// MetricResult is the immutable outcome of one metric computation.
type MetricResult struct {
	Metric                string
	Unit                  string
	Direction             Direction
	Target                *float64
	Window                Window
	GroupBy               []Dimension
	Value                 float64
	Confidence            float64
	NoDenominator         bool
	Buckets               []BucketResult
	PerRecord             []RecordContribution
	InsufficientDataCount int
}
