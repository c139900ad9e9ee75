package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ContextKey is the key type for context values
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"

	// InitDataHeader carries the web app's signed launch parameters
	InitDataHeader = "X-Telegram-Init-Data"

	// MaxAge is how long a signed initData stays valid
	MaxAge = 24 * time.Hour
)

var (
	ErrMissingHash = errors.New("hash not found in initData")
	ErrBadHash     = errors.New("invalid hash")
	ErrExpired     = errors.New("auth_date is too old")
	ErrNoUser      = errors.New("user not found in initData")
)

// ValidateInitData checks the HMAC-SHA256 signature of a Telegram web app
// initData string against botToken and returns the signed user id.
func ValidateInitData(initData, botToken string, now time.Time) (int64, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("parse initData: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, ErrMissingHash
	}

	if !hmac.Equal([]byte(hash), []byte(Sign(values, botToken))) {
		return 0, ErrBadHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid auth_date format")
	}
	if now.Sub(time.Unix(authDate, 0)) > MaxAge {
		return 0, ErrExpired
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, ErrNoUser
	}
	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &user); err != nil {
		return 0, fmt.Errorf("failed to parse user: %w", err)
	}
	if user.ID == 0 {
		return 0, ErrNoUser
	}
	return user.ID, nil
}

// Sign computes the hex hash Telegram puts in initData: the data check
// string (sorted key=value lines, hash excluded) signed with a key derived
// from the bot token.
func Sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Middleware validates initData on /api/ routes. With an empty botToken
// every request passes unauthenticated. A non-zero ownerID rejects every
// other signed user.
func Middleware(botToken string, ownerID int64, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if botToken == "" || !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/ping" {
				next.ServeHTTP(w, r)
				return
			}

			initData := r.Header.Get(InitDataHeader)
			if initData == "" {
				http.Error(w, "Unauthorized: missing "+InitDataHeader+" header", http.StatusUnauthorized)
				return
			}

			userID, err := ValidateInitData(initData, botToken, time.Now())
			if err != nil {
				log.Warn("auth_failed", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "Unauthorized: invalid initData", http.StatusUnauthorized)
				return
			}
			if ownerID != 0 && userID != ownerID {
				log.Warn("auth_not_owner", zap.Int64("user_id", userID))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUserID(r.Context(), userID)))
		})
	}
}

// contextWithUserID adds the user ID to the context
func contextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext retrieves the user ID from the context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
