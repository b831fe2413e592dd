package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sirupsen/logrus"
)

// SarprasHandler provides HTTP handlers for the asset registry.
type SarprasHandler struct {
	sarprasService *services.SarprasService
	logger         logrus.FieldLogger
}

func NewSarprasHandler(sarprasService *services.SarprasService, logger logrus.FieldLogger) *SarprasHandler {
	return &SarprasHandler{sarprasService: sarprasService, logger: logger}
}

// SarprasRouter registers asset routes. Reads need a session, writes need
// the admin role.
func SarprasRouter(r chi.Router, sarprasService *services.SarprasService, authn *Authenticator, logger logrus.FieldLogger) {
	handler := NewSarprasHandler(sarprasService, logger)

	r.Use(authn.RequireAuth)
	r.Get("/", handler.ListSarpras)
	r.With(RequireAdmin).Post("/", handler.CreateSarpras)
	r.Get("/qr/{code}", handler.GetSarprasByCode)
	r.Route("/{sarprasID}", func(r chi.Router) {
		r.Get("/", handler.GetSarpras)
		r.Get("/qr.png", handler.GetQRImage)
		r.With(RequireAdmin).Put("/", handler.UpdateSarpras)
		r.With(RequireAdmin).Delete("/", handler.DeleteSarpras)
	})
}

func (h *SarprasHandler) ListSarpras(w http.ResponseWriter, r *http.Request) {
	items, err := h.sarprasService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, items, "")
}

func (h *SarprasHandler) GetSarpras(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "sarprasID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.sarprasService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, item, "")
}

// GetSarprasByCode resolves a scanned QR payload. Apart from URL decoding
// the code is used verbatim.
func (h *SarprasHandler) GetSarprasByCode(w http.ResponseWriter, r *http.Request) {
	code, err := pathParam(r, "code")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.sarprasService.GetByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, item, "")
}

func (h *SarprasHandler) GetQRImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "sarprasID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	png, item, err := h.sarprasService.QRImage(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", `inline; filename="`+qrFilename(item.Code)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *SarprasHandler) CreateSarpras(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	var req services.SarprasInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.sarprasService.Create(r.Context(), identity, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, created, "sarpras created")
}

func (h *SarprasHandler) UpdateSarpras(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "sarprasID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req services.SarprasUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.sarprasService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, updated, "sarpras updated")
}

func (h *SarprasHandler) DeleteSarpras(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id, err := parseID(r, "sarprasID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sarprasService.Delete(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nil, "sarpras deleted")
}

// qrFilename keeps only characters that are safe in a header value.
func qrFilename(code string) string {
	safe := make([]rune, 0, len(code))
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			safe = append(safe, c)
		default:
			safe = append(safe, '_')
		}
	}
	return "qr-" + string(safe) + ".png"
}
