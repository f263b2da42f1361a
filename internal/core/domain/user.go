package domain

import (
	"strconv"
	"strings"
)

// Role is a user's function within a field-service team.
type Role string

// Known roles.
const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleMaintainer Role = "mantenedor"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleMaintainer:
		return true
	}
	return false
}

// RequiresSpeciality reports whether users with this role must carry a
// speciality. Only admins are speciality-free.
func (r Role) RequiresSpeciality() bool {
	return r == RoleSupervisor || r == RoleMaintainer
}

// User is a personnel record keyed by its numeric code.
type User struct {
	Code         int64  `json:"code"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Speciality   *int64 `json:"speciality"`
	Active       bool   `json:"active"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Signature    string `json:"signature,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Normalize trims text fields and drops the speciality of admins.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Role = Role(strings.ToLower(strings.TrimSpace(string(u.Role))))
	if u.Role == RoleAdmin {
		u.Speciality = nil
	}
}

// Validate checks the user against the record invariants.
// Returns ErrUserValidation listing every violation.
func (u *User) Validate() error {
	var violations []string

	if u.Code <= 0 {
		violations = append(violations, "code must be a positive number")
	}
	if strings.TrimSpace(u.Name) == "" {
		violations = append(violations, "name is required")
	}
	switch {
	case u.Role == "":
		violations = append(violations, "role is required")
	case !u.Role.IsValid():
		violations = append(violations, "role must be one of admin, supervisor, mantenedor")
	case u.Role.RequiresSpeciality() && u.Speciality == nil:
		violations = append(violations, "speciality is required for role "+string(u.Role))
	case !u.Role.RequiresSpeciality() && u.Speciality != nil:
		violations = append(violations, "speciality must be empty for role "+string(u.Role))
	}

	if len(violations) > 0 {
		return ErrUserValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone creates a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	if u.Speciality != nil {
		sp := *u.Speciality
		c.Speciality = &sp
	}
	return &c
}

// ParseCode parses a user-supplied numeric code.
func ParseCode(s string) (int64, error) {
	code, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || code <= 0 {
		return 0, ErrInvalidArgument.WithDetailsf("code %q is not a positive number", s)
	}
	return code, nil
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
