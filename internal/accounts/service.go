// Package accounts registers users and verifies their credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
)

type Service struct {
	store store.Store
	cost  int
	log   *logrus.Entry
}

func NewService(st store.Store, log *logrus.Logger) *Service {
	return &Service{
		store: st,
		cost:  bcrypt.DefaultCost,
		log:   log.WithField("component", "accounts"),
	}
}

// WithHashCost overrides the bcrypt cost, tests use bcrypt.MinCost
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

func validate(req models.RegisterRequest) error {
	n := utf8.RuneCountInString(req.Username)
	if n < minUsernameLen || n > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", models.ErrInvalidArgument, minUsernameLen, maxUsernameLen)
	}
	if len(req.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", models.ErrInvalidArgument, minPasswordLen)
	}
	if !strings.Contains(req.Email, "@") {
		return fmt.Errorf("%w: invalid email", models.ErrInvalidArgument)
	}
	return nil
}

// Register creates an active user with the initial balance
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return s.create(ctx, req, models.RoleUser)
}

// EnsureAdmin creates the admin account unless a user with that name already exists
func (s *Service) EnsureAdmin(ctx context.Context, req models.RegisterRequest) (models.User, bool, error) {
	var existing models.User
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		existing, err = tx.GetUserByUsername(ctx, req.Username)
		return err
	})
	switch {
	case err == nil:
		return existing, false, nil
	case !models.IsNotFound(err):
		return models.User{}, false, err
	}

	u, err := s.create(ctx, req, models.RoleAdmin)
	return u, err == nil, err
}

func (s *Service) create(ctx context.Context, req models.RegisterRequest, role string) (models.User, error) {
	if err := validate(req); err != nil {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created models.User
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserByUsername(ctx, req.Username); err == nil {
			return fmt.Errorf("%w: username already registered", models.ErrConflict)
		} else if !models.IsNotFound(err) {
			return err
		}
		if _, err := tx.GetUserByEmail(ctx, req.Email); err == nil {
			return fmt.Errorf("%w: email already registered", models.ErrConflict)
		} else if !models.IsNotFound(err) {
			return err
		}

		created, err = tx.CreateUser(ctx, models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Balance:      models.InitialBalance,
			Role:         role,
			IsActive:     true,
		})
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": created.ID, "role": created.Role}).Info("User registered")
	return created, nil
}

// Authenticate checks username and password. Inactive users get ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var u models.User
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUserByUsername(ctx, username)
		return err
	})
	if models.IsNotFound(err) {
		return models.User{}, models.ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.User{}, models.ErrUnauthorized
		}
		return models.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !u.IsActive {
		return models.User{}, fmt.Errorf("%w: inactive user", models.ErrForbidden)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		return err
	})
	return u, err
}
