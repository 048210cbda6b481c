package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User validation errors
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyUserName    = errors.New("user name cannot be empty")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword    = errors.New("password cannot be empty")
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordLength = 72
)

var emailValidator = validator.New()

// Role is the closed set of roles an identity can hold.
type Role string

const (
	// RoleAdmin may create, list, update, reassign and delete any task.
	RoleAdmin Role = "admin"
	// RoleMember may only see and update tasks assigned to them.
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", NewValidationError("role", "must be one of admin, member", ErrInvalidRole)
	}
	return r, nil
}

// Identity is a verified actor: the user ID and role extracted from credentials.
// The core never authenticates; it only reads identities handed to it.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// User is a registered account. Tasks reference users through CreatedBy and AssignedTo.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	Password       string    `json:"-"` // Plaintext, only set during registration
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with a fresh ID and timestamps.
// The caller is responsible for hashing the password before storing the user.
func NewUser(name, email, password string, role Role) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Identity returns the identity this user acts as.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Name == "" {
		return ErrEmptyUserName
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	if err := emailValidator.Var(u.Email, "email"); err != nil {
		return ErrInvalidEmail
	}

	if !u.Role.Valid() {
		return ErrInvalidRole
	}

	// Existing users loaded from the store only carry the hash.
	if u.Password != "" {
		if len(u.Password) < minPasswordLength {
			return ErrPasswordTooShort
		}
		if len(u.Password) > maxPasswordLength {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		return ErrEmptyPassword
	}

	return nil
}

// UserPatch is a partial update of an account. Nil fields are left untouched.
type UserPatch struct {
	Name     *string
	Email    *string
	Role     *Role
	Password *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.Password == nil
}

// Apply returns a validated copy of u with the patch applied. A new password
// is left in plaintext on the copy for the caller to hash.
func (p UserPatch) Apply(u *User) (*User, error) {
	updated := *u
	updated.Password = ""

	if p.Name != nil {
		updated.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		updated.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil {
		updated.Role = *p.Role
	}
	if p.Password != nil {
		if *p.Password == "" {
			return nil, ErrEmptyPassword
		}
		updated.Password = *p.Password
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}
