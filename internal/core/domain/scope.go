package domain

import (
	"fmt"
	"strings"
)

// ScopeKind selects which orders a snapshot covers.
type ScopeKind string

const (
	ScopeAll        ScopeKind = ""
	ScopeSpeciality ScopeKind = "speciality"
	ScopeAssignee   ScopeKind = "user"
)

// Scope restricts order snapshots to one speciality or one assignee.
// The zero value is unscoped.
type Scope struct {
	Kind ScopeKind `json:"kind,omitempty"`
	ID   int64     `json:"id,omitempty"`
}

// SpecialityScope returns a scope over orders of speciality id.
func SpecialityScope(id int64) Scope {
	return Scope{Kind: ScopeSpeciality, ID: id}
}

// AssigneeScope returns a scope over orders assigned to user code.
func AssigneeScope(code int64) Scope {
	return Scope{Kind: ScopeAssignee, ID: code}
}

// IsAll reports whether the scope is unrestricted.
func (s Scope) IsAll() bool {
	return s.Kind == ScopeAll
}

// Matches reports whether o falls inside the scope.
func (s Scope) Matches(o *Order) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeSpeciality:
		id, ok := o.Info.Speciality()
		return ok && id == s.ID
	case ScopeAssignee:
		code, ok := o.Info.AssignedTo()
		return ok && code == s.ID
	default:
		return false
	}
}

// String renders the scope as "all", "speciality:<id>" or "user:<code>".
func (s Scope) String() string {
	if s.IsAll() {
		return "all"
	}
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// ParseScope reads "all", "", "speciality:<id>", "user:<code>" and the
// aliases "specialty", "assignee".
func ParseScope(str string) (Scope, error) {
	str = strings.TrimSpace(strings.ToLower(str))
	if str == "" || str == "all" {
		return Scope{}, nil
	}
	kind, value, ok := strings.Cut(str, ":")
	if !ok {
		return Scope{}, ErrInvalidArgument.WithDetailsf("scope %q must be kind:id", str)
	}
	id, ok := ParseInteger(value)
	if !ok {
		return Scope{}, ErrInvalidArgument.WithDetailsf("scope id %q is not a number", value)
	}
	switch kind {
	case "speciality", "specialty", "especialidad":
		return SpecialityScope(id), nil
	case "user", "assignee", "usuario":
		return AssigneeScope(id), nil
	default:
		return Scope{}, ErrInvalidArgument.WithDetailsf("unknown scope kind %q", kind)
	}
}
