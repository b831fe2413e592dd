package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminHandler provides the admin-only triage and user management routes.
type AdminHandler struct {
	dashboardService *services.DashboardService
	laporanService   *services.LaporanService
	userService      *services.UserService
	logger           logrus.FieldLogger
}

func NewAdminHandler(dashboardService *services.DashboardService, laporanService *services.LaporanService, userService *services.UserService, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		dashboardService: dashboardService,
		laporanService:   laporanService,
		userService:      userService,
		logger:           logger,
	}
}

// AdminRouter registers admin routes behind authentication and the admin
// role check.
func AdminRouter(r chi.Router, handler *AdminHandler, authn *Authenticator) {
	r.Use(authn.RequireAuth, RequireAdmin)
	r.Get("/dashboard", handler.Dashboard)
	r.Patch("/laporan/{laporanID}/status", handler.UpdateStatus)
	r.Get("/users", handler.ListUsers)
	r.Delete("/users/{userID}", handler.DeleteUser)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboardService.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dashboard, "")
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id, err := parseID(r, "laporanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req services.StatusUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.laporanService.UpdateStatus(r.Context(), identity, id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, updated, "status updated")
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, users, "")
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.userService.Delete(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nil, "user deleted")
}
