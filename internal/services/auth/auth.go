package authservice

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zanzhit/voice_recorder/internal/domain/constants"
	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	"github.com/zanzhit/voice_recorder/internal/lib/jwt"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
)

type AuthService struct {
	log      *slog.Logger
	users    UserStore
	tokenTTL time.Duration
	secret   string
}

type UserStore interface {
	SaveUser(email, userType string, passHash []byte) (string, error)
	User(email string) (models.User, error)
}

func New(log *slog.Logger, users UserStore, tokenTTL time.Duration, secret string) *AuthService {
	return &AuthService{
		log:      log,
		users:    users,
		tokenTTL: tokenTTL,
		secret:   secret,
	}
}

// RegisterNewUser creates an account and returns its id. An empty userType
// means an ordinary user; anything other than the known types is rejected.
func (s *AuthService) RegisterNewUser(email, password, userType string) (string, error) {
	const op = "service.auth.RegisterNewUser"

	log := s.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)

	if userType == "" {
		userType = constants.User
	}
	if userType != constants.User && userType != constants.Admin {
		log.Warn("rejected registration", sl.Err(errs.ErrUserType))

		return "", fmt.Errorf("%s: %w", op, errs.ErrUserType)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.users.SaveUser(email, userType, passHash)
	if err != nil {
		log.Error("failed to save user", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", id))

	return id, nil
}

// Login checks the credentials and mints a bearer token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(email, password string) (string, error) {
	const op = "service.auth.Login"

	log := s.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)

	user, err := s.users.User(email)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			log.Info("login rejected", sl.Err(err))

			return "", fmt.Errorf("%s: %w", op, errs.ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("login rejected", sl.Err(errs.ErrInvalidCredentials))

		return "", fmt.Errorf("%s: %w", op, errs.ErrInvalidCredentials)
	}

	token, err := jwt.NewToken(user, s.tokenTTL, s.secret)
	if err != nil {
		log.Error("failed to mint token", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in")

	return token, nil
}

// CreateInitialAdmin bootstraps the admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. An already existing account is left untouched.
func (s *AuthService) CreateInitialAdmin() error {
	const op = "service.auth.CreateInitialAdmin"

	log := s.log.With(slog.String("op", op))

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	if email == "" || password == "" {
		return fmt.Errorf("%s: ADMIN_EMAIL and ADMIN_PASSWORD are required", op)
	}

	_, err := s.users.User(email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrInvalidCredentials) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.RegisterNewUser(email, password, constants.Admin); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("initial admin created")

	return nil
}
