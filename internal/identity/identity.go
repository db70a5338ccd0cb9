// Package identity provides user accounts and JWT-based sessions over the
// document store: registration, credential authentication, token
// issue/validation, and identity lookups by username or email.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Firebreather-heart/sensei/internal/docstore"
	"github.com/Firebreather-heart/sensei/internal/logging"
	"github.com/Firebreather-heart/sensei/internal/metrics"
)

const usersCollection = "users"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ErrUnauthenticated is returned for missing, invalid or expired
// credentials. Unknown email and wrong password are indistinguishable.
var ErrUnauthenticated = errors.New("invalid credentials")

// ErrNotFound is returned when a referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// ValidationError reports malformed input to an identity operation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConflictError reports duplicate username/email with field-level detail.
type ConflictError struct {
	Fields map[string]string
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+": "+reason)
	}
	sort.Strings(parts)
	return "conflict: " + strings.Join(parts, ", ")
}

// User is a stored user account. The password hash travels with the
// document but must never reach API responses; see Secure.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SecureUser is the response-safe view of a User.
type SecureUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Secure strips the password hash.
func (u *User) Secure() SecureUser {
	return SecureUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserUpdate is a partial update to a user account.
type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

// Service implements the identity provider over the document store.
type Service struct {
	store    docstore.Store
	secret   []byte
	tokenTTL time.Duration
}

// New creates an identity service. Tokens are valid for seven days.
func New(store docstore.Store, jwtSecret string) *Service {
	return &Service{
		store:    store,
		secret:   []byte(jwtSecret),
		tokenTTL: 7 * 24 * time.Hour,
	}
}

// Register creates a user account. Duplicate username or email fails with
// a ConflictError naming each offending field. The user id is derived
// from the username (UUIDv5), so usernames are globally unique handles.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	conflicts := make(map[string]string)

	if existing, err := s.ByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		conflicts["username"] = "username already exists"
	}
	if existing, err := s.ByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		conflicts["email"] = "email already exists"
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Fields: conflicts}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.NewSHA1(uuid.NameSpaceDNS, []byte(username)).String(),
		Username:  username,
		Email:     email,
		Password:  string(hashed),
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Set(ctx, usersCollection, user.ID, user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	stored, err := s.byID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("read back user: %w", err)
	}

	logging.Info("user registered", zap.String("username", username))
	return stored, nil
}

// ByUsername returns the user with the given username, or nil.
func (s *Service) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.queryOne(ctx, "username", username)
}

// ByEmail returns the user with the given email, or nil.
func (s *Service) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryOne(ctx, "email", email)
}

// UsernameExists reports whether a username resolves to a real identity.
func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

func (s *Service) queryOne(ctx context.Context, field, value string) (*User, error) {
	raws, err := s.store.Query(ctx, usersCollection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query users by %s: %w", field, err)
	}
	if len(raws) == 0 {
		return nil, nil
	}
	return decodeUser(raws[0])
}

func (s *Service) byID(ctx context.Context, id string) (*User, error) {
	raw, err := s.store.Get(ctx, usersCollection, id)
	if err == docstore.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return decodeUser(raw)
}

// Update changes username, email and/or role, re-checking uniqueness for
// any changed handle. Renaming keeps the original id (derived from the
// registration-time username) and does not rewrite file ownership or ACL
// entries recorded under the old name; those grants are stranded until
// re-shared.
func (s *Service) Update(ctx context.Context, id string, patch UserUpdate) (*User, error) {
	user, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	conflicts := make(map[string]string)

	if patch.Username != nil && *patch.Username != user.Username {
		existing, err := s.ByUsername(ctx, *patch.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			conflicts["username"] = "username already exists"
		} else {
			fields["username"] = *patch.Username
		}
	}
	if patch.Email != nil && *patch.Email != user.Email {
		existing, err := s.ByEmail(ctx, *patch.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			conflicts["email"] = "email already exists"
		} else {
			fields["email"] = *patch.Email
		}
	}
	if patch.Role != nil {
		// List enumerates by known roles, so an arbitrary role string
		// would orphan the account.
		if *patch.Role != RoleUser && *patch.Role != RoleAdmin {
			return nil, &ValidationError{Reason: "unknown role " + *patch.Role}
		}
		fields["role"] = *patch.Role
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Fields: conflicts}
	}

	fields["updated_at"] = time.Now().UTC()
	if err := s.store.Update(ctx, usersCollection, id, fields); err != nil {
		if err == docstore.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.byID(ctx, id)
}

// List returns all users. Admin endpoints only.
func (s *Service) List(ctx context.Context) ([]SecureUser, error) {
	// A collection-wide equality query on a constant field would need a
	// schema marker; every user has a role, so scan both known roles.
	var users []SecureUser
	for _, role := range []string{RoleUser, RoleAdmin} {
		raws, err := s.store.Query(ctx, usersCollection, "role", role)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, raw := range raws {
			u, err := decodeUser(raw)
			if err != nil {
				return nil, err
			}
			users = append(users, u.Secure())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	metrics.SetUsersTotal(int64(len(users)))
	return users, nil
}

func decodeUser(raw docstore.Document) (*User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
