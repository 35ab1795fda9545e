package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sentinel-guard/internal/model"
	"sentinel-guard/internal/utils"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrInvalidToken   = errors.New("invalid token")
)

type contextKey struct{}

// Claims are the login token's claims.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator checks configured users and issues HS256 tokens.
type Authenticator struct {
	secretKey []byte
	ttl       time.Duration
	users     []utils.UserConfig
	now       func() time.Time
}

func NewAuthenticator(secretKey string, ttl time.Duration, users []utils.UserConfig) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		users:     users,
		now:       time.Now,
	}
}

// Login returns a signed token and the user's info.
func (a *Authenticator) Login(username, password string) (string, model.UserInfo, error) {
	for i, u := range a.users {
		if u.Username != username {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
			break
		}
		user := model.UserInfo{ID: i + 1, Username: u.Username, Role: u.Role}
		token, err := a.GenerateJWT(user)
		if err != nil {
			return "", model.UserInfo{}, err
		}
		return token, user, nil
	}
	return "", model.UserInfo{}, ErrBadCredentials
}

func (a *Authenticator) GenerateJWT(user model.UserInfo) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    "sentinel-guard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token. onReject
// writes the 401 response.
func (a *Authenticator) Middleware(onReject func(w http.ResponseWriter, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				onReject(w, "Missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				onReject(w, "Invalid authorization header")
				return
			}

			claims, err := a.Validate(tokenString)
			if err != nil {
				onReject(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
		})
	}
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}
