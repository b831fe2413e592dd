package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	maxMultipartMemory = 8 << 20
	maxUploadBodySize  = 32 << 20

	formFieldSarprasID   = "sarpras_id"
	formFieldSarprasCode = "kode_sarpras"
	formFieldDesc        = "deskripsi"
	formFieldLocation    = "lokasi"
	formFieldReportDate  = "tanggal_laporan"
	formFieldPhoto       = "foto"
)

// LaporanHandler provides HTTP handlers for damage reports.
type LaporanHandler struct {
	laporanService *services.LaporanService
	logger         logrus.FieldLogger
}

func NewLaporanHandler(laporanService *services.LaporanService, logger logrus.FieldLogger) *LaporanHandler {
	return &LaporanHandler{laporanService: laporanService, logger: logger}
}

// LaporanRouter registers report routes. Every route requires
// authentication; ownership is checked by the service.
func LaporanRouter(r chi.Router, laporanService *services.LaporanService, authn *Authenticator, logger logrus.FieldLogger) {
	handler := NewLaporanHandler(laporanService, logger)

	r.Use(authn.RequireAuth)
	r.Get("/", handler.ListLaporan)
	r.Post("/", handler.CreateLaporan)
	r.Route("/{laporanID}", func(r chi.Router) {
		r.Get("/", handler.GetLaporan)
		r.Put("/", handler.UpdateLaporan)
		r.Delete("/", handler.DeleteLaporan)
		r.Get("/foto", handler.GetPhoto)
	})
}

func (h *LaporanHandler) ListLaporan(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := types.LaporanFilter{
		Status: types.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:  limit,
		Offset: offset,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		filter.UserID, err = strconv.Atoi(raw)
		if err != nil || filter.UserID < 1 {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
	}

	items, err := h.laporanService.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, items, "")
}

func (h *LaporanHandler) GetLaporan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "laporanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.laporanService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, item, "")
}

func (h *LaporanHandler) CreateLaporan(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	form, err := parseLaporanForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.close()

	in := services.LaporanInput{
		SarprasCode: form.value(formFieldSarprasCode),
		Description: form.value(formFieldDesc),
		Location:    form.value(formFieldLocation),
		ReportDate:  form.value(formFieldReportDate),
		Photo:       form.photo,
	}
	if raw := strings.TrimSpace(form.value(formFieldSarprasID)); raw != "" {
		in.SarprasID, err = strconv.Atoi(raw)
		if err != nil || in.SarprasID < 1 {
			writeError(w, http.StatusBadRequest, "invalid sarpras_id")
			return
		}
	}

	created, err := h.laporanService.Create(r.Context(), identity, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, created, "laporan created")
}

func (h *LaporanHandler) UpdateLaporan(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id, err := parseID(r, "laporanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := parseLaporanForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.close()

	updated, err := h.laporanService.Update(r.Context(), identity, id, services.LaporanUpdate{
		Description: form.optional(formFieldDesc),
		Location:    form.optional(formFieldLocation),
		ReportDate:  form.optional(formFieldReportDate),
		Photo:       form.photo,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, updated, "laporan updated")
}

func (h *LaporanHandler) DeleteLaporan(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id, err := parseID(r, "laporanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.laporanService.Delete(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, nil, "laporan deleted")
}

// GetPhoto streams the report's photo.
func (h *LaporanHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "laporanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, err := h.laporanService.OpenPhoto(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WithError(err).WithField("laporan_id", id).Warn("failed to stream photo")
	}
}

// laporanForm is a parsed report form. Both multipart and urlencoded
// bodies are accepted; only multipart bodies can carry a photo.
type laporanForm struct {
	values    map[string][]string
	photo     *services.Photo
	file      multipart.File
	multipart *multipart.Form
}

func parseLaporanForm(w http.ResponseWriter, r *http.Request) (*laporanForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	form := &laporanForm{}

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, errors.New("invalid multipart form")
		}
		form.values = r.PostForm
		form.multipart = r.MultipartForm
		files := r.MultipartForm.File[formFieldPhoto]
		if len(files) > 1 {
			return nil, errors.New("only one foto is allowed")
		}
		if len(files) == 1 {
			file, err := files[0].Open()
			if err != nil {
				return nil, errors.New("failed to read foto")
			}
			form.file = file
			form.photo = &services.Photo{Filename: files[0].Filename, Size: files[0].Size, Body: file}
		}
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form")
		}
		form.values = r.PostForm
	default:
		return nil, errors.New("expected multipart/form-data or application/x-www-form-urlencoded body")
	}
	return form, nil
}

func (f *laporanForm) value(field string) string {
	if values := f.values[field]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// optional returns nil when field was not sent at all.
func (f *laporanForm) optional(field string) *string {
	values, ok := f.values[field]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func (f *laporanForm) close() {
	if f.file != nil {
		_ = f.file.Close()
	}
	if f.multipart != nil {
		_ = f.multipart.RemoveAll()
	}
}
