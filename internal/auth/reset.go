package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lireddit/backend/internal/models"
)

// ResetTokenDuration is how long a password-reset token stays usable.
const ResetTokenDuration = time.Hour

const resetPurpose = "password_reset"

var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// resetClaims are the claims carried by password-reset tokens.
type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// resetSecret derives the per-user signing key for reset tokens. Folding the
// current password hash into the key invalidates every outstanding token the
// moment the password changes.
func resetSecret(secret []byte, user *models.User) []byte {
	key := make([]byte, 0, len(secret)+len(user.Password))
	key = append(key, secret...)
	key = append(key, user.Password...)
	return key
}

// GenerateResetToken issues a stateless password-reset token for the user.
func GenerateResetToken(secret []byte, user *models.User) (string, error) {
	claims := resetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ResetTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(resetSecret(secret, user))
}

// ResetTokenSubject extracts the user id a reset token claims to be for,
// without verifying the signature. The caller must load that user and then
// verify with VerifyResetToken.
func ResetTokenSubject(tokenStr string) (int, error) {
	var claims resetClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, ErrInvalidResetToken
	}
	return id, nil
}

// VerifyResetToken checks the token's signature and expiry against the
// user's current credential state.
func VerifyResetToken(secret []byte, tokenStr string, user *models.User) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, &resetClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return resetSecret(secret, user), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}

	claims, ok := parsed.Claims.(*resetClaims)
	if !ok || !parsed.Valid || claims.Purpose != resetPurpose {
		return ErrInvalidResetToken
	}
	if claims.Subject != strconv.Itoa(user.ID) {
		return ErrInvalidResetToken
	}
	return nil
}
