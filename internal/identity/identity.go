// Package identity manages user registration, sign-in, and profile updates.
// Credentials and the mirrored user profile both live in the document store;
// passwords are stored as bcrypt hashes only.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stocktalk/internal/docstore"
	"stocktalk/internal/domain"
)

// Document-store collections owned by this package.
const (
	colCredentials = "Credentials"
	colUsers       = "User"
)

var (
	ErrEmailTaken   = errors.New("identity: email already taken")
	ErrInvalidLogin = errors.New("identity: invalid email or password")
	ErrNoUser       = errors.New("identity: user not found")
	ErrNotAdmin     = errors.New("identity: admin privileges required")
)

// credential is the stored login record, keyed by normalized email.
type credential struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// Service implements signup, signin, and profile management.
type Service struct {
	store docstore.Store
}

// NewService creates an identity Service backed by the given store.
func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// SignUp registers a new user and mirrors a minimal profile document.
// It returns the new user id.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", errors.New("identity: a valid email is required")
	}
	if len(password) < 6 {
		return "", errors.New("identity: password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	userID := uuid.NewString()
	cred := credential{UserID: userID, Email: email, PasswordHash: string(hash)}

	if err := s.store.Create(ctx, colCredentials, email, cred); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("storing credentials: %w", err)
	}

	user := domain.User{UserID: userID, Setup: false, Reliability: domain.DefaultReliability}
	if err := s.store.Create(ctx, colUsers, userID, user); err != nil {
		return "", fmt.Errorf("mirroring user profile: %w", err)
	}

	return userID, nil
}

// SignIn verifies the password for an email and returns the user id.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	var cred credential
	if err := s.store.Get(ctx, colCredentials, email, &cred); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", ErrInvalidLogin
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidLogin
	}
	return cred.UserID, nil
}

// InitialSetup completes registration with username and age, marking the
// profile as set up and applying the default reliability score.
func (s *Service) InitialSetup(ctx context.Context, userID, username string, age int) error {
	if username == "" {
		return errors.New("identity: username is required")
	}

	// Preserve flags from a prior profile when present.
	var existing domain.User
	err := s.store.Get(ctx, colUsers, userID, &existing)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	reliability := existing.Reliability
	if reliability == 0 {
		reliability = domain.DefaultReliability
	}

	user := domain.User{
		UserID:      userID,
		Username:    username,
		Age:         age,
		Setup:       true,
		Admin:       existing.Admin,
		Reliability: reliability,
	}
	return s.store.Set(ctx, colUsers, userID, user)
}

// UpdatePassword replaces the stored hash for a user's credential record.
func (s *Service) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 6 {
		return errors.New("identity: password must be at least 6 characters")
	}

	cred, err := s.credentialByUserID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	cred.PasswordHash = string(hash)

	return s.store.Set(ctx, colCredentials, cred.Email, cred)
}

// UpdateUsername changes the display name on the mirrored profile.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) error {
	if username == "" {
		return errors.New("identity: username is required")
	}

	var user domain.User
	if err := s.store.Get(ctx, colUsers, userID, &user); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNoUser
		}
		return err
	}

	user.Username = username
	return s.store.Set(ctx, colUsers, userID, user)
}

// Promote grants the admin flag to target. The caller must already be an
// admin, except when no admin exists yet (bootstrap).
func (s *Service) Promote(ctx context.Context, callerID, targetID string) error {
	var caller domain.User
	err := s.store.Get(ctx, colUsers, callerID, &caller)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	if !caller.Admin {
		bootstrap, berr := s.noAdminExists(ctx)
		if berr != nil {
			return berr
		}
		if !bootstrap || callerID != targetID {
			return ErrNotAdmin
		}
	}

	var target domain.User
	if err := s.store.Get(ctx, colUsers, targetID, &target); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNoUser
		}
		return err
	}

	target.Admin = true
	return s.store.Set(ctx, colUsers, targetID, target)
}

// User returns the mirrored profile for a user id.
func (s *Service) User(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	if err := s.store.Get(ctx, colUsers, userID, &user); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.User{}, ErrNoUser
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) credentialByUserID(ctx context.Context, userID string) (credential, error) {
	raws, err := s.store.Query(ctx, colCredentials, "userId", userID)
	if err != nil {
		return credential{}, err
	}
	creds, err := docstore.DecodeAll[credential](raws)
	if err != nil {
		return credential{}, err
	}
	if len(creds) == 0 {
		return credential{}, ErrNoUser
	}
	return creds[0], nil
}

func (s *Service) noAdminExists(ctx context.Context) (bool, error) {
	raws, err := s.store.Query(ctx, colUsers, "admin", true)
	if err != nil {
		return false, err
	}
	return len(raws) == 0, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
