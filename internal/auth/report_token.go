package auth

import (
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ReportTokenClaims are the claims of a signed report-download link.
type ReportTokenClaims struct {
	TaskType string `json:"task_type"`
	UserID   string `json:"user_id"`
	jwt.RegisteredClaims
}

// ReportTokenManager signs short-lived download tokens so report artifacts
// can be fetched via a plain GET without re-sending session credentials.
type ReportTokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewReportTokenManager creates a ReportTokenManager.
func NewReportTokenManager(secret string, ttl time.Duration) *ReportTokenManager {
	return &ReportTokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate issues a download token for one report task, bound to the
// requesting user.
func (m *ReportTokenManager) Generate(taskType, userID string) (string, error) {
	now := time.Now()
	claims := ReportTokenClaims{
		TaskType: taskType,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign report token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a download token, returning its claims.
func (m *ReportTokenManager) Validate(tokenString string) (*ReportTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReportTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	claims, ok := token.Claims.(*ReportTokenClaims)
	if !ok || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
