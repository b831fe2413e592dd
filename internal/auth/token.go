package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sarpras-lapor/apiserver/types"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for correctly signed but expired tokens.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the JWT payload issued on login.
type Claims struct {
	UID      int    `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token for user. The returned identity carries the session
// id and expiry encoded in the token.
func (m *TokenManager) Issue(user types.User) (string, Identity, error) {
	if len(m.secret) == 0 {
		return "", Identity{}, errors.New("token secret not configured")
	}

	now := m.now()
	identity := Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}

	claims := Claims{
		UID:      identity.UserID,
		Username: identity.Username,
		Role:     string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        identity.SessionID,
			Subject:   fmt.Sprintf("%d", identity.UserID),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Identity{}, err
	}
	return token, identity, nil
}

// Verify checks the signature, algorithm, issuer and expiry of tokenString and
// resolves it to an identity. It does not consult any storage.
func (m *TokenManager) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired()}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{
		UserID:    claims.UID,
		Username:  claims.Username,
		Role:      types.Role(claims.Role),
		SessionID: strings.TrimSpace(claims.ID),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	if identity.UserID < 1 || !identity.Role.Valid() || identity.SessionID == "" {
		return Identity{}, fmt.Errorf("%w: claims do not resolve to an identity", ErrInvalidToken)
	}
	return identity, nil
}
