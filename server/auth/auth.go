// Package auth resolves the account address behind an API request.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service is unreachable.
	ErrUnavailable = errors.New("auth: unavailable")
)

// AddressHeader carries the caller's address when header auth is enabled.
const AddressHeader = "X-Account-Address"

type Identity struct {
	Address string `json:"address"`
}

// Validator turns a bearer token into an identity.
// Returns:
//   - (*Identity, nil) if the token is valid
//   - (nil, ErrInvalidToken) if the token is definitively invalid
//   - (nil, ErrUnavailable) if the auth service could not answer
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// HTTPValidator validates tokens via HTTP callback to an external service
// that owns signature login and token issuance.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
}

func NewHTTPValidator(url string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		client:      &http.Client{Timeout: 500 * time.Millisecond},
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !out.Valid || out.Address == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Address: strings.ToLower(out.Address)}, nil
}

// HeaderValidator trusts the address the client sends (dev mode).
type HeaderValidator struct{}

func (HeaderValidator) Validate(_ context.Context, address string) (*Identity, error) {
	if address == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Address: strings.ToLower(address)}, nil
}

type ctxKey struct{}

// AddressFrom returns the authenticated address stored by Middleware.
func AddressFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	if !ok || id == nil {
		return "", false
	}
	return id.Address, true
}

// WithIdentity stores id on ctx the way Middleware does.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware rejects requests the validator does not accept. HeaderValidator
// reads AddressHeader, every other validator the bearer token.
func Middleware(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cred string
			if _, ok := v.(HeaderValidator); ok {
				cred = r.Header.Get(AddressHeader)
			} else {
				cred = bearer(r)
			}
			id, err := v.Validate(r.Context(), cred)
			switch {
			case errors.Is(err, ErrUnavailable):
				writeErr(w, http.StatusServiceUnavailable, "auth unavailable")
				return
			case err != nil || id == nil:
				writeErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin guards operator endpoints with a shared secret.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeErr(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
