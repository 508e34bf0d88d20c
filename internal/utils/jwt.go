package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/support-service/internal/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// IdentityVerifier turns a bearer credential into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

type IdentityClaims struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	AuthMethod    string `json:"auth_method,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	PhoneVerified bool   `json:"phone_verified,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens signed with the shared auth-service secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (j *JWTVerifier) Verify(ctx context.Context, tokenString string) (models.Identity, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid token", models.ErrAuthenticationRequired)
	}

	identity := claims.Identity()
	if !identity.Authenticated() {
		return models.Identity{}, fmt.Errorf("%w: token has no subject", models.ErrAuthenticationRequired)
	}
	return identity, nil
}

// GenerateToken signs an identity; the auth service owns issuance in
// production, this is used by local tooling and tests.
func (j *JWTVerifier) GenerateToken(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		UserID:        identity.Subject,
		Role:          string(identity.Role),
		AuthMethod:    string(identity.Method),
		Name:          identity.Name,
		Email:         identity.Email,
		Phone:         identity.Phone,
		Avatar:        identity.Avatar,
		EmailVerified: identity.EmailVerified,
		PhoneVerified: identity.PhoneVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (c IdentityClaims) Identity() models.Identity {
	subject := c.UserID
	if subject == "" {
		subject = c.Subject
	}
	role := models.Role(c.Role)
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{
		Subject:       subject,
		Role:          role,
		Method:        inferMethod(models.AuthMethod(c.AuthMethod), c.Email, c.Phone),
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Avatar:        c.Avatar,
		EmailVerified: c.EmailVerified,
		PhoneVerified: c.PhoneVerified,
	}
}

func inferMethod(method models.AuthMethod, email, phone string) models.AuthMethod {
	if method.Valid() {
		return method
	}
	if email == "" && phone != "" {
		return models.AuthMethodPhone
	}
	return models.AuthMethodEmail
}
