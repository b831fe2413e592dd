package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

// invalidCredentials is the single answer to every failed login.
const invalidCredentials = "invalid credentials"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// RegisterInput holds the fields accepted on registration.
type RegisterInput struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Name     string     `json:"nama"`
	Email    string     `json:"email"`
	Role     types.Role `json:"role"`
}

// LoginInput holds login credentials. Role optionally restricts the login
// to accounts with that role.
type LoginInput struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     types.Role `json:"selectedRole"`
}

// Session is returned on a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

// UserService encapsulates identity and session use-cases.
type UserService struct {
	repo        UserRepository
	tokens      *auth.TokenManager
	revocations auth.RevocationList
	logger      logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService wires the user use-cases. revocations may be nil, in which
// case logout only ends the session client-side.
func NewUserService(repo UserRepository, tokens *auth.TokenManager, revocations auth.RevocationList, logger logrus.FieldLogger) *UserService {
	return &UserService{
		repo:        repo,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.WithField("component", "user"),
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	switch {
	case in.Username == "":
		return types.User{}, validationError("username is required")
	case in.Name == "":
		return types.User{}, validationError("nama is required")
	case in.Email == "":
		return types.User{}, validationError("email is required")
	case len(in.Password) < minPasswordLength:
		return types.User{}, validationError("password must be at least %d characters", minPasswordLength)
	case len(in.Password) > maxPasswordLength:
		return types.User{}, validationError("password must be at most %d bytes", maxPasswordLength)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return types.User{}, validationError("email is invalid")
	}
	if in.Role == "" {
		in.Role = types.RoleUser
	}
	if !in.Role.Valid() {
		return types.User{}, validationError("role must be %q or %q", types.RoleAdmin, types.RoleUser)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(ErrConflict, "username or email already in use")
		}
		return types.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials and issues a session token. Every failure
// returns the same Unauthenticated error; a selectedRole outside the
// role set is a Validation error.
func (s *UserService) Login(ctx context.Context, in LoginInput) (Session, error) {
	if in.Role != "" && !in.Role.Valid() {
		return Session{}, validationError("selectedRole must be %q or %q", types.RoleAdmin, types.RoleUser)
	}
	fail := newError(ErrUnauthenticated, invalidCredentials)

	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Session{}, err
		}
		// Keep the timing of unknown usernames close to wrong passwords.
		_ = auth.ComparePassword(s.dummy(), in.Password)
		return Session{}, fail
	}
	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		return Session{}, fail
	}
	if in.Role != "" && in.Role != user.Role {
		return Session{}, fail
	}

	token, identity, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	user.PasswordHash = ""
	return Session{Token: token, ExpiresAt: identity.ExpiresAt, User: user}, nil
}

// Logout ends the caller's session before the token expires.
func (s *UserService) Logout(ctx context.Context, identity auth.Identity) error {
	if s.revocations == nil {
		s.logger.WithField("user_id", identity.UserID).Warn("logout without revocation store, token stays valid until expiry")
		return nil
	}
	return s.revocations.Revoke(ctx, identity.SessionID, identity.ExpiresAt)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user")
		}
		return types.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// Delete removes user id on behalf of actor. Admins cannot delete the
// account they are signed in with, and users who still own reports are
// kept.
func (s *UserService) Delete(ctx context.Context, actor auth.Identity, id int) error {
	if actor.UserID == id {
		return forbidden("cannot delete the account of the current session")
	}
	err := s.repo.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound("user")
	case errors.Is(err, store.ErrInUse):
		return newError(ErrConflict, "user still owns reports")
	default:
		return err
	}
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	return s.dummyHash
}
