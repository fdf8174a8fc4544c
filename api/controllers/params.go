package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solespace/solespace-backend/api/middleware"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

// RequireUser returns the authenticated user or an UNAUTHORIZED error.
func RequireUser(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, nil
}

// IDParam parses a positive numeric chi path parameter.
func IDParam(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s", name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
