package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const SessionTTL = 7 * 24 * time.Hour

var ErrInvalidSession = errors.New("invalid session")

// SessionClaims — содержимое cookie админ-сессии.
type SessionClaims struct {
	TgID     int64  `json:"tg_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager выпускает и проверяет HS256-токены админки.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: SessionTTL, now: time.Now}
}

// Issue выпускает токен для пользователя Telegram.
func (m *SessionManager) Issue(tgID int64, username string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		TgID:     tgID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(tgID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Parse проверяет подпись и срок токена.
func (m *SessionManager) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// TTL возвращает срок жизни сессии.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}
