package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/qr"
	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const maxCodeLength = 64

// SarprasRepository defines persistence operations for assets.
type SarprasRepository interface {
	List(ctx context.Context) ([]types.Sarpras, error)
	GetByID(ctx context.Context, id int) (types.Sarpras, error)
	GetByCode(ctx context.Context, code string) (types.Sarpras, error)
	Create(ctx context.Context, item types.Sarpras) (types.Sarpras, error)
	Update(ctx context.Context, id int, patch types.SarprasPatch) (types.Sarpras, error)
	Archive(ctx context.Context, id int) error
}

// SarprasInput holds the fields accepted when registering an asset.
type SarprasInput struct {
	Code      string `json:"kode_sarpras"`
	Name      string `json:"nama_sarpras"`
	Category  string `json:"kategori"`
	Location  string `json:"lokasi"`
	Condition string `json:"kondisi"`
}

// SarprasUpdate holds a partial asset update. Code may be echoed back by
// clients but must match the stored code.
type SarprasUpdate struct {
	Code      *string `json:"kode_sarpras"`
	Name      *string `json:"nama_sarpras"`
	Category  *string `json:"kategori"`
	Location  *string `json:"lokasi"`
	Condition *string `json:"kondisi"`
}

// SarprasService encapsulates the asset registry.
type SarprasService struct {
	repo      SarprasRepository
	encoder   *qr.Encoder
	publisher *events.Publisher
	logger    logrus.FieldLogger
}

func NewSarprasService(repo SarprasRepository, encoder *qr.Encoder, publisher *events.Publisher, logger logrus.FieldLogger) *SarprasService {
	return &SarprasService{
		repo:      repo,
		encoder:   encoder,
		publisher: publisher,
		logger:    logger.WithField("component", "sarpras"),
	}
}

func (s *SarprasService) List(ctx context.Context) ([]types.Sarpras, error) {
	return s.repo.List(ctx)
}

func (s *SarprasService) Get(ctx context.Context, id int) (types.Sarpras, error) {
	item, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Sarpras{}, notFound("sarpras")
	}
	return item, err
}

// GetByCode resolves a scanned code. The lookup is exact and case-sensitive.
func (s *SarprasService) GetByCode(ctx context.Context, code string) (types.Sarpras, error) {
	if code == "" {
		return types.Sarpras{}, validationError("kode_sarpras is required")
	}
	item, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return types.Sarpras{}, notFound("sarpras")
	}
	return item, err
}

func (s *SarprasService) Create(ctx context.Context, actor auth.Identity, in SarprasInput) (types.Sarpras, error) {
	item := types.Sarpras{
		Code:      strings.TrimSpace(in.Code),
		Name:      strings.TrimSpace(in.Name),
		Category:  strings.TrimSpace(in.Category),
		Location:  strings.TrimSpace(in.Location),
		Condition: strings.TrimSpace(in.Condition),
	}
	switch {
	case item.Code == "":
		return types.Sarpras{}, validationError("kode_sarpras is required")
	case len(item.Code) > maxCodeLength:
		return types.Sarpras{}, validationError("kode_sarpras must be at most %d characters", maxCodeLength)
	case item.Name == "":
		return types.Sarpras{}, validationError("nama_sarpras is required")
	}
	if item.Condition == "" {
		item.Condition = types.ConditionGood
	}

	encoded, err := s.encoder.DataURL(item.Code)
	if err != nil {
		return types.Sarpras{}, err
	}
	item.QRCode = encoded

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Sarpras{}, newError(ErrConflict, "kode_sarpras %q already exists", item.Code)
		}
		return types.Sarpras{}, err
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.SarprasCreated,
		SarprasID: created.ID,
		ActorID:   actor.UserID,
	})
	return created, nil
}

// Update applies a partial update. The asset code is immutable.
func (s *SarprasService) Update(ctx context.Context, id int, in SarprasUpdate) (types.Sarpras, error) {
	if in.Code != nil {
		current, err := s.Get(ctx, id)
		if err != nil {
			return types.Sarpras{}, err
		}
		if strings.TrimSpace(*in.Code) != current.Code {
			return types.Sarpras{}, validationError("kode_sarpras cannot be changed")
		}
	}

	patch := types.SarprasPatch{
		Name:      trimmed(in.Name),
		Category:  trimmed(in.Category),
		Location:  trimmed(in.Location),
		Condition: trimmed(in.Condition),
	}
	if patch.Empty() {
		return types.Sarpras{}, validationError("no fields to update")
	}
	if patch.Name != nil && *patch.Name == "" {
		return types.Sarpras{}, validationError("nama_sarpras cannot be empty")
	}
	if patch.Condition != nil && *patch.Condition == "" {
		return types.Sarpras{}, validationError("kondisi cannot be empty")
	}

	item, err := s.repo.Update(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		return types.Sarpras{}, notFound("sarpras")
	}
	return item, err
}

// Delete archives an asset. Assets with open reports are kept.
func (s *SarprasService) Delete(ctx context.Context, actor auth.Identity, id int) error {
	err := s.repo.Archive(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return notFound("sarpras")
	case errors.Is(err, store.ErrInUse):
		return newError(ErrConflict, "sarpras still has open reports")
	default:
		return err
	}

	publish(ctx, s.publisher, s.logger, events.Event{
		Type:      events.SarprasArchived,
		SarprasID: id,
		ActorID:   actor.UserID,
	})
	return nil
}

// QRImage renders the asset's code as a PNG for printing.
func (s *SarprasService) QRImage(ctx context.Context, id int) ([]byte, types.Sarpras, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, types.Sarpras{}, err
	}
	png, err := s.encoder.PNG(item.Code)
	if err != nil {
		return nil, types.Sarpras{}, err
	}
	return png, item, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
