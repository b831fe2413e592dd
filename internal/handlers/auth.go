package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sirupsen/logrus"
)

// AuthHandler provides registration and session endpoints.
type AuthHandler struct {
	userService *services.UserService
	logger      logrus.FieldLogger
}

func NewAuthHandler(userService *services.UserService, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{userService: userService, logger: logger}
}

// AuthRouter registers auth routes on the given router. rateLimit guards
// the credential endpoints and may be nil.
func AuthRouter(r chi.Router, userService *services.UserService, authn *Authenticator, rateLimit func(http.Handler) http.Handler, logger logrus.FieldLogger) {
	handler := NewAuthHandler(userService, logger)

	r.Group(func(r chi.Router) {
		if rateLimit != nil {
			r.Use(rateLimit)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Get("/me", handler.Me)
		r.Post("/logout", handler.Logout)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, user, "user registered")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.userService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, session, "login successful")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, user, "")
}

// Logout ends the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	if err := h.userService.Logout(r.Context(), identity); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nil, "logged out")
}
