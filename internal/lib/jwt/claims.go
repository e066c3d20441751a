package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Subject данные пользователя, которые попадают в токен.
type Subject struct {
	UserUID  string
	Email    string
	Role     string
	TenantID string
}

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
// Идентификатор сессии хранится в стандартном поле jti.
type CustomClaims struct {
	UserUID  string `json:"user_uid"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken создает JWT токен для сессии, подписывая его секретным ключом.
func (j *MakerImpl) GenerateToken(subject Subject, sessionID string) (string, *CustomClaims, error) {
	const op = "jwt.GenerateToken"
	now := j.clock.Now()
	claims := &CustomClaims{
		UserUID:  subject.UserUID,
		Email:    subject.Email,
		Role:     subject.Role,
		TenantID: subject.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   subject.UserUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return signed, claims, nil
}

// ParseToken парсит JWT токен, проверяет его подпись и валидность,
// возвращает CustomClaims с данными, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%s: token has no session id", op)
	}
	return claims, nil
}
