package access

import (
	"ShiftMetrics/internal/models/domain"
)

// ResolveScope turns a caller context into an access scope.
// ADMIN and POWERUSER are unrestricted; LEADER and OPERATOR are limited to
// their assigned clients. A restricted role with no assignment never reaches
// here under normal construction, but the invariant is re-checked so a
// hand-built context cannot silently widen to "all clients".
func ResolveScope(caller *domain.CallerContext) (domain.Scope, error) {
	if caller.Role.Unrestricted() {
		return domain.UnrestrictedScope(), nil
	}
	if len(caller.AssignedClients) == 0 {
		return domain.Scope{}, &domain.ConfigurationError{
			Reason: "role " + string(caller.Role) + " requires at least one assigned client",
		}
	}
	return domain.RestrictedTo(caller.AssignedClients), nil
}

// Verify checks that the scope may touch a resource belonging to the given
// client. It must be called before the operation proceeds, never after any
// partial read or write.
func Verify(scope domain.Scope, resourceClient domain.ClientID) error {
	if scope.Allows(resourceClient) {
		return nil
	}
	return &domain.AccessDeniedError{Client: resourceClient}
}

// Predicate is an inclusion filter over a client field, composable with
// other filters via logical AND. A nil *Predicate means "no restriction";
// callers must never read it as "restrict to nothing".
type Predicate struct {
	Field   string
	Clients []domain.ClientID
}

// BuildFilter produces the list-query predicate for a scope.
// Unrestricted scopes yield nil.
func BuildFilter(scope domain.Scope, clientField string) *Predicate {
	if scope.IsUnrestricted() {
		return nil
	}
	return &Predicate{Field: clientField, Clients: scope.Clients()}
}

// Matches applies the predicate in memory. Nil receiver matches everything.
func (p *Predicate) Matches(client domain.ClientID) bool {
	if p == nil {
		return true
	}
	for _, c := range p.Clients {
		if c == client {
			return true
		}
	}
	return false
}
