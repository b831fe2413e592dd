package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/storage"
	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
)

// LaporanRepository defines persistence operations for reports.
type LaporanRepository interface {
	List(ctx context.Context, filter types.LaporanFilter) ([]types.Laporan, error)
	Get(ctx context.Context, id int) (types.Laporan, error)
	Create(ctx context.Context, item types.Laporan) (types.Laporan, error)
	Update(ctx context.Context, id int, patch types.LaporanPatch) error
	UpdateStatus(ctx context.Context, id int, from, to types.Status, note *string) error
	Delete(ctx context.Context, id int) error
}

// LaporanInput holds the fields of a new report. The asset is referenced
// by SarprasID or, for the scan flow, by SarprasCode.
type LaporanInput struct {
	SarprasID   int
	SarprasCode string
	Description string
	Location    string
	ReportDate  string
	Photo       *Photo
}

// LaporanUpdate holds an owner's partial edit. Nil fields are kept.
type LaporanUpdate struct {
	Description *string
	Location    *string
	ReportDate  *string
	Photo       *Photo
}

// StatusUpdate is an admin triage decision. A nil AdminNote keeps the
// current note. Override allows moves outside the forward lifecycle.
type StatusUpdate struct {
	Status    types.Status `json:"status"`
	AdminNote *string      `json:"catatan_admin"`
	Override  bool         `json:"override"`
}

// LaporanService implements the report lifecycle.
type LaporanService struct {
	repo      LaporanRepository
	assets    SarprasRepository
	photos    photoUploader
	publisher *events.Publisher
	logger    logrus.FieldLogger
}

// NewLaporanService wires the report use-cases. photos may be nil, which
// disables photo uploads.
func NewLaporanService(repo LaporanRepository, assets SarprasRepository, photos PhotoStore, maxPhotoBytes int64, publisher *events.Publisher, logger logrus.FieldLogger) *LaporanService {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = DefaultMaxPhotoLen
	}
	return &LaporanService{
		repo:      repo,
		assets:    assets,
		photos:    photoUploader{store: photos, maxLen: maxPhotoBytes},
		publisher: publisher,
		logger:    logger.WithField("component", "laporan"),
	}
}

// List returns reports newest first.
func (s *LaporanService) List(ctx context.Context, filter types.LaporanFilter) ([]types.Laporan, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationError("unknown status %q", filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, validationError("limit and offset must not be negative")
	}
	return s.repo.List(ctx, filter)
}

func (s *LaporanService) Get(ctx context.Context, id int) (types.Laporan, error) {
	item, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Laporan{}, notFound("laporan")
	}
	return item, err
}

// Create files a report owned by actor. The asset must exist; a missing
// location is filled from the asset.
func (s *LaporanService) Create(ctx context.Context, actor auth.Identity, in LaporanInput) (types.Laporan, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return types.Laporan{}, validationError("deskripsi is required")
	}
	if strings.TrimSpace(in.ReportDate) == "" {
		return types.Laporan{}, validationError("tanggal_laporan is required")
	}
	reportDate, err := parseReportDate(in.ReportDate)
	if err != nil {
		return types.Laporan{}, err
	}

	sarprasID, err := s.resolveAsset(ctx, in.SarprasID, in.SarprasCode)
	if err != nil {
		return types.Laporan{}, err
	}

	var photoKey string
	if in.Photo != nil {
		if photoKey, err = s.photos.save(ctx, in.Photo); err != nil {
			return types.Laporan{}, err
		}
	}

	created, err := s.repo.Create(ctx, types.Laporan{
		SarprasID:   sarprasID,
		UserID:      actor.UserID,
		Description: description,
		Location:    strings.TrimSpace(in.Location),
		ReportDate:  reportDate,
		Photo:       photoKey,
		Status:      types.StatusPending,
	})
	if err != nil {
		s.discardPhoto(ctx, photoKey)
		if errors.Is(err, store.ErrReferenceNotFound) {
			return types.Laporan{}, notFound("sarpras")
		}
		return types.Laporan{}, err
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.LaporanCreated,
		LaporanID: created.ID,
		SarprasID: created.SarprasID,
		UserID:    created.UserID,
		ActorID:   actor.UserID,
		Status:    created.Status,
	})
	return s.reload(ctx, created), nil
}

// Update applies the owner's edit. Only the owner may edit a report, and
// the status is never touched here.
func (s *LaporanService) Update(ctx context.Context, actor auth.Identity, id int, in LaporanUpdate) (types.Laporan, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return types.Laporan{}, err
	}
	if existing.UserID != actor.UserID {
		return types.Laporan{}, forbidden("only the reporter can edit this laporan")
	}

	var patch types.LaporanPatch
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if description == "" {
			return types.Laporan{}, validationError("deskripsi cannot be empty")
		}
		patch.Description = &description
	}
	if patch.Location = trimmed(in.Location); patch.Location != nil && *patch.Location == "" {
		return types.Laporan{}, validationError("lokasi cannot be empty")
	}
	if in.ReportDate != nil {
		reportDate, err := parseReportDate(*in.ReportDate)
		if err != nil {
			return types.Laporan{}, err
		}
		patch.ReportDate = &reportDate
	}
	if patch.Empty() && in.Photo == nil {
		return types.Laporan{}, validationError("no fields to update")
	}
	if in.Photo != nil {
		key, err := s.photos.save(ctx, in.Photo)
		if err != nil {
			return types.Laporan{}, err
		}
		patch.Photo = &key
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if patch.Photo != nil {
			s.discardPhoto(ctx, *patch.Photo)
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.Laporan{}, notFound("laporan")
		}
		return types.Laporan{}, err
	}
	if patch.Photo != nil {
		s.discardPhoto(ctx, existing.Photo)
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.LaporanUpdated,
		LaporanID: id,
		SarprasID: existing.SarprasID,
		UserID:    existing.UserID,
		ActorID:   actor.UserID,
		Status:    existing.Status,
	})
	return s.Get(ctx, id)
}

// UpdateStatus records an admin triage decision. Without Override only
// forward moves are accepted. The decision is applied only if the report
// is still in the status it was made against.
func (s *LaporanService) UpdateStatus(ctx context.Context, actor auth.Identity, id int, in StatusUpdate) (types.Laporan, error) {
	if !in.Status.Valid() {
		return types.Laporan{}, validationError("status must be one of %q, %q or %q", types.StatusPending, types.StatusInProgress, types.StatusDone)
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return types.Laporan{}, err
	}
	if !in.Override && !CanTransition(existing.Status, in.Status) {
		return types.Laporan{}, validationError("cannot move laporan from %s to %s without override", existing.Status, in.Status)
	}

	err = s.repo.UpdateStatus(ctx, id, existing.Status, in.Status, in.AdminNote)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return types.Laporan{}, notFound("laporan")
	case errors.Is(err, store.ErrConflict):
		return types.Laporan{}, newError(ErrConflict, "laporan status was changed concurrently, reload and retry")
	default:
		return types.Laporan{}, err
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.LaporanStatusChanged,
		LaporanID: id,
		SarprasID: existing.SarprasID,
		UserID:    existing.UserID,
		ActorID:   actor.UserID,
		Status:    in.Status,
	})
	return s.Get(ctx, id)
}

// Delete removes a report. The owner and admins may delete it.
func (s *LaporanService) Delete(ctx context.Context, actor auth.Identity, id int) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != actor.UserID && !actor.IsAdmin() {
		return forbidden("only the reporter or an admin can delete this laporan")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("laporan")
		}
		return err
	}
	s.discardPhoto(ctx, existing.Photo)

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.LaporanDeleted,
		LaporanID: id,
		SarprasID: existing.SarprasID,
		UserID:    existing.UserID,
		ActorID:   actor.UserID,
		Status:    existing.Status,
	})
	return nil
}

// OpenPhoto opens the photo attached to report id. Callers must close the
// returned body.
func (s *LaporanService) OpenPhoto(ctx context.Context, id int) (storage.Object, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return storage.Object{}, err
	}
	if item.Photo == "" || s.photos.store == nil {
		return storage.Object{}, notFound("foto")
	}
	obj, err := s.photos.store.Get(ctx, item.Photo)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.Object{}, notFound("foto")
	}
	return obj, err
}

func (s *LaporanService) resolveAsset(ctx context.Context, id int, code string) (int, error) {
	if id > 0 {
		return id, nil
	}
	if code == "" {
		return 0, validationError("sarpras_id or kode_sarpras is required")
	}
	asset, err := s.assets.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, notFound("sarpras")
		}
		return 0, err
	}
	return asset.ID, nil
}

// reload returns the joined view of a freshly written report, falling back
// to item when the read fails.
func (s *LaporanService) reload(ctx context.Context, item types.Laporan) types.Laporan {
	full, err := s.repo.Get(ctx, item.ID)
	if err != nil {
		s.logger.WithError(err).WithField("laporan_id", item.ID).Warn("failed to reload laporan")
		return item
	}
	return full
}

func (s *LaporanService) discardPhoto(ctx context.Context, key string) {
	if err := s.photos.remove(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to remove photo")
	}
}

// parseReportDate accepts a calendar date or an RFC 3339 timestamp and
// returns the date at UTC midnight.
func parseReportDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, validationError("tanggal_laporan must be a date (YYYY-MM-DD)")
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
