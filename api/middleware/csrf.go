package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/solespace/solespace-backend/api/responses"
	"github.com/solespace/solespace-backend/pkg/config"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/types"
)

const (
	defaultCSRFCookie = "solespace_csrf"
	defaultCSRFHeader = "X-CSRF-TOKEN"
	csrfTokenBytes    = 32
)

// CSRF enforces the double-submit pattern: unsafe methods must echo the
// cookie value in the CSRF header.
func CSRF(cfg config.SecurityConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.CSRFEnabled || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			header := strings.TrimSpace(r.Header.Get(csrfHeader(cfg)))
			cookie, err := r.Cookie(csrfCookie(cfg))
			if header == "" || err != nil || cookie.Value == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeCSRF, "CSRF token missing"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeCSRF, "CSRF token mismatch"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFToken issues a fresh token, sets the matching cookie and returns
// {csrf_token}. An existing cookie is reused so open tabs stay valid.
func CSRFToken(cfg config.SecurityConfig, secure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(csrfCookie(cfg)); err == nil {
			token = cookie.Value
		}
		if token == "" {
			generated, err := newCSRFToken()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate csrf token"))
				return
			}
			token = generated
		}
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookie(cfg),
			Value:    token,
			Path:     "/",
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		responses.WriteSuccess(w, types.Payload{"csrf_token": token})
	}
}

func newCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func csrfCookie(cfg config.SecurityConfig) string {
	if cfg.CSRFCookieName == "" {
		return defaultCSRFCookie
	}
	return cfg.CSRFCookieName
}

func csrfHeader(cfg config.SecurityConfig) string {
	if cfg.CSRFHeaderName == "" {
		return defaultCSRFHeader
	}
	return cfg.CSRFHeaderName
}
