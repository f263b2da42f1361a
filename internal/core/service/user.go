package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// UserService handles personnel records.
type UserService struct {
	store Store
	opts  Options
}

// NewUserService creates a new UserService.
func NewUserService(store Store, opts Options) *UserService {
	return &UserService{store: store, opts: opts.withDefaults()}
}

// ============================================================================
// Queries
// ============================================================================

// ListUsers returns all users ordered by code.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		users, err = tx.Users()
		return err
	})
	return users, err
}

// GetUser returns one user, ErrUserNotFound if absent.
func (s *UserService) GetUser(ctx context.Context, code int64) (*domain.User, error) {
	var u *domain.User
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		u, err = tx.User(code)
		return err
	})
	return u, err
}

// ============================================================================
// Add / Update / Delete
// ============================================================================

// AddUserRequest contains the fields of a new user. Code and Speciality
// accept numbers or numeric strings as sent by forms.
type AddUserRequest struct {
	Code       any    // Required, integer
	Name       string // Required
	Role       string // Required: admin, supervisor, mantenedor
	Speciality any    // Required for supervisor and mantenedor
	Active     *bool  // Optional, defaults to true
	Password   string // Optional, stored as an Argon2id hash
	Signature  string // Optional
}

// AddUser creates a user. Fails with a validation error on missing or
// malformed fields and with ErrUserConflict when the code exists.
func (s *UserService) AddUser(ctx context.Context, req *AddUserRequest) (*domain.User, error) {
	if req == nil {
		return nil, domain.ErrUserValidation.WithDetails("request is required")
	}

	code, ok := domain.ParseInteger(req.Code)
	if !ok {
		return nil, domain.ErrUserValidation.WithDetailsf("code %v is not a number", req.Code)
	}
	speciality, err := parseSpeciality(req.Speciality)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Code:       code,
		Name:       req.Name,
		Role:       domain.Role(req.Role),
		Speciality: speciality,
		Active:     req.Active == nil || *req.Active,
		Signature:  strings.TrimSpace(req.Signature),
	}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if req.Password != "" {
		if u.PasswordHash, err = domain.HashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	_, _, err = s.store.Mutate(ctx, domain.FamilyUsers, func(tx storage.Tables) (string, error) {
		if _, err := tx.User(code); err == nil {
			return "", domain.ErrUserConflict.WithDetailsf("user %d already exists", code)
		} else if !domain.IsNotFound(err) {
			return "", err
		}

		now := s.opts.Clock.NowISO()
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := tx.PutUser(u); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added user %d (%s)", u.Code, u.Name), nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Info("user added", "code", u.Code, "role", u.Role)
	return u, nil
}

// UserPatch lists the fields to change. Nil fields are kept.
type UserPatch struct {
	Name            *string
	Role            *string
	Speciality      *int64
	ClearSpeciality bool
	Active          *bool
	Password        *string
	Signature       *string
}

// UpdateUser applies patch to the user with code. Fails with
// ErrUserNotFound when absent and with a validation error when the
// result breaks the user invariants.
func (s *UserService) UpdateUser(ctx context.Context, code int64, patch *UserPatch) (*domain.User, error) {
	if patch == nil {
		return nil, domain.ErrUserValidation.WithDetails("patch is required")
	}

	var hash string
	if patch.Password != nil {
		var err error
		if hash, err = domain.HashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}

	var updated *domain.User
	_, _, err := s.store.Mutate(ctx, domain.FamilyUsers, func(tx storage.Tables) (string, error) {
		current, err := tx.User(code)
		if err != nil {
			return "", err
		}

		u := current.Clone()
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Role != nil {
			u.Role = domain.Role(*patch.Role)
		}
		if patch.ClearSpeciality {
			u.Speciality = nil
		}
		if patch.Speciality != nil {
			u.Speciality = domain.Int64Ptr(*patch.Speciality)
		}
		if patch.Active != nil {
			u.Active = *patch.Active
		}
		if patch.Signature != nil {
			u.Signature = strings.TrimSpace(*patch.Signature)
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		u.Normalize()
		if err := u.Validate(); err != nil {
			return "", err
		}

		updated = u
		if sameJSON(current, u) {
			return "", nil
		}
		u.UpdatedAt = s.opts.Clock.NowISO()
		if err := tx.PutUser(u); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated user %d", code), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes the user with code, ErrUserNotFound if absent.
func (s *UserService) DeleteUser(ctx context.Context, code int64) error {
	_, _, err := s.store.Mutate(ctx, domain.FamilyUsers, func(tx storage.Tables) (string, error) {
		if err := tx.DeleteUser(code); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted user %d", code), nil
	})
	if err != nil {
		return err
	}
	s.opts.Logger.Info("user deleted", "code", code)
	return nil
}

// ============================================================================
// Bootstrap
// ============================================================================

// BootstrapAdmin holds the externally configured administrator.
type BootstrapAdmin struct {
	Name     string
	Password string
	Code     string
}

// IsSet reports whether any bootstrap value is configured.
func (b BootstrapAdmin) IsSet() bool {
	return b.Name != "" || b.Password != "" || b.Code != ""
}

// EnsureAdmin seeds the configured administrator unless a user with its
// code already exists. Returns true when the user was created. Running it
// again is a no-op.
func (s *UserService) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	code, err := domain.ParseCode(admin.Code)
	if err != nil {
		return false, domain.ErrUserValidation.WithDetailsf("bootstrap admin code %q is not a positive number", admin.Code)
	}
	if strings.TrimSpace(admin.Name) == "" {
		return false, domain.ErrUserValidation.WithDetails("bootstrap admin name is required")
	}
	if admin.Password == "" {
		return false, domain.ErrUserValidation.WithDetails("bootstrap admin password is required")
	}

	var created bool
	_, _, err = s.store.Mutate(ctx, domain.FamilyUsers, func(tx storage.Tables) (string, error) {
		if _, err := tx.User(code); err == nil {
			return "", nil
		} else if !domain.IsNotFound(err) {
			return "", err
		}

		hash, err := domain.HashPassword(admin.Password)
		if err != nil {
			return "", err
		}
		now := s.opts.Clock.NowISO()
		u := &domain.User{
			Code:         code,
			Name:         strings.TrimSpace(admin.Name),
			Role:         domain.RoleAdmin,
			Active:       true,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.PutUser(u); err != nil {
			return "", err
		}
		created = true
		return fmt.Sprintf("Seeded administrator %d", code), nil
	})
	if err != nil {
		return false, err
	}

	if created {
		s.opts.Logger.Info("bootstrap administrator created", "code", code)
	} else {
		s.opts.Logger.Debug("bootstrap administrator already present", "code", code)
	}
	return created, nil
}

// parseSpeciality reads an optional speciality value. Empty values mean
// "no speciality".
func parseSpeciality(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if p, ok := v.(*int64); ok {
		if p == nil {
			return nil, nil
		}
		return domain.Int64Ptr(*p), nil
	}
	n, ok := domain.ParseInteger(v)
	if !ok {
		return nil, domain.ErrUserValidation.WithDetailsf("speciality %v is not a number", v)
	}
	return &n, nil
}
