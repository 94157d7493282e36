package authservice

import (
	"io"
	"log/slog"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zanzhit/voice_recorder/internal/domain/constants"
	"github.com/zanzhit/voice_recorder/internal/domain/errs"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

type fakeUserStore struct {
	users  map[string]models.User
	nextID string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User), nextID: "u-1"}
}

func (s *fakeUserStore) SaveUser(email, userType string, passHash []byte) (string, error) {
	if _, ok := s.users[email]; ok {
		return "", errs.ErrUserExists
	}

	s.users[email] = models.User{
		Id:       s.nextID,
		Email:    email,
		UserType: userType,
		PassHash: passHash,
	}

	return s.nextID, nil
}

func (s *fakeUserStore) User(email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, errs.ErrInvalidCredentials
	}

	return user, nil
}

const testSecret = "test-secret"

func newService(store *fakeUserStore) *AuthService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, store, time.Hour, testSecret)
}

func TestRegisterDefaultsToOrdinaryUser(t *testing.T) {
	store := newFakeUserStore()
	svc := newService(store)

	id, err := svc.RegisterNewUser("ann@example.com", "correct horse", "")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	assert.Equal(t, constants.User, store.users["ann@example.com"].UserType)
}

func TestRegisterRejectsUnknownUserType(t *testing.T) {
	svc := newService(newFakeUserStore())

	_, err := svc.RegisterNewUser("ann@example.com", "correct horse", "superuser")
	require.ErrorIs(t, err, errs.ErrUserType)
}

func TestRegisterNeverStoresPlaintext(t *testing.T) {
	store := newFakeUserStore()
	svc := newService(store)

	_, err := svc.RegisterNewUser("ann@example.com", "correct horse", constants.User)
	require.NoError(t, err)

	saved := store.users["ann@example.com"]
	assert.NotEqual(t, []byte("correct horse"), saved.PassHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(saved.PassHash, []byte("correct horse")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	svc := newService(store)

	_, err := svc.RegisterNewUser("ann@example.com", "correct horse", "")
	require.NoError(t, err)

	_, err = svc.RegisterNewUser("ann@example.com", "other password", "")
	require.ErrorIs(t, err, errs.ErrUserExists)
}

func TestLoginMintsVerifiableToken(t *testing.T) {
	store := newFakeUserStore()
	svc := newService(store)

	_, err := svc.RegisterNewUser("ann@example.com", "correct horse", constants.Admin)
	require.NoError(t, err)

	token, err := svc.Login("ann@example.com", "correct horse")
	require.NoError(t, err)

	parsed, err := gojwt.Parse(token, func(*gojwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(gojwt.MapClaims)
	assert.Equal(t, "u-1", claims["uid"])
	assert.Equal(t, "ann@example.com", claims["email"])
	assert.Equal(t, constants.Admin, claims["user_type"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()), "token must carry a future expiry")
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	svc := newService(store)

	_, err := svc.RegisterNewUser("ann@example.com", "correct horse", "")
	require.NoError(t, err)

	_, err = svc.Login("ann@example.com", "wrong horse")
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newService(newFakeUserStore())

	_, err := svc.Login("nobody@example.com", "whatever")
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestCreateInitialAdmin(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "root@example.com")
	t.Setenv("ADMIN_PASSWORD", "bootstrap pass")

	store := newFakeUserStore()
	svc := newService(store)

	require.NoError(t, svc.CreateInitialAdmin())
	assert.Equal(t, constants.Admin, store.users["root@example.com"].UserType)

	// A second run leaves the existing account alone.
	require.NoError(t, svc.CreateInitialAdmin())
	assert.Len(t, store.users, 1)
}

func TestCreateInitialAdminRequiresEnv(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("ADMIN_PASSWORD", "")

	svc := newService(newFakeUserStore())

	require.Error(t, svc.CreateInitialAdmin())
}
