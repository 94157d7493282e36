package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zanzhit/voice_recorder/internal/domain/models"
)

// NewToken mints the bearer token the auth middleware verifies: uid, email
// and user_type claims with an absolute expiry.
func NewToken(user models.User, ttl time.Duration, secret string) (string, error) {
	const op = "lib.jwt.NewToken"

	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":       user.Id,
		"email":     user.Email,
		"user_type": user.UserType,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}
