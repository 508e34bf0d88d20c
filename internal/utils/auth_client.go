package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/support-service/internal/models"
)

type AuthResponse struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	AuthMethod    string `json:"auth_method"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Avatar        string `json:"avatar"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
}

// AuthServiceVerifier delegates verification to the auth service.
type AuthServiceVerifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewAuthServiceVerifier(baseURL string) *AuthServiceVerifier {
	return &AuthServiceVerifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *AuthServiceVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/validate", nil)
	if err != nil {
		return models.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Identity{}, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return models.Identity{}, fmt.Errorf("%w: token rejected", models.ErrAuthenticationRequired)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Identity{}, fmt.Errorf("auth service returned status: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return models.Identity{}, err
	}
	if authResp.UserID == "" {
		return models.Identity{}, fmt.Errorf("%w: token has no subject", models.ErrAuthenticationRequired)
	}

	role := models.Role(authResp.Role)
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{
		Subject:       authResp.UserID,
		Role:          role,
		Method:        inferMethod(models.AuthMethod(authResp.AuthMethod), authResp.Email, authResp.Phone),
		Name:          authResp.Name,
		Email:         authResp.Email,
		Phone:         authResp.Phone,
		Avatar:        authResp.Avatar,
		EmailVerified: authResp.EmailVerified,
		PhoneVerified: authResp.PhoneVerified,
	}, nil
}
