package types

import "time"

// Well-known asset conditions. Kondisi is free text, these are the values
// the dashboard groups on.
const (
	ConditionGood        = "baik"
	ConditionMinorDamage = "rusak ringan"
	ConditionMajorDamage = "rusak berat"
)

// Sarpras is a physical facility asset identified by a printed QR code.
type Sarpras struct {
	// ID is the unique identifier of the asset.
	ID int `json:"id" db:"id"`

	// Code is the globally unique, human-readable asset code. It is the
	// payload of the QR sticker and never changes after creation.
	Code string `json:"kode_sarpras" db:"kode_sarpras"`

	// Name is the display name of the asset.
	Name string `json:"nama_sarpras" db:"nama_sarpras"`

	// Category groups assets (e.g., "elektronik", "furnitur").
	Category string `json:"kategori" db:"kategori"`

	// Location is where the asset is installed.
	Location string `json:"lokasi" db:"lokasi"`

	// Condition is informational and not derived from report history.
	Condition string `json:"kondisi" db:"kondisi"`

	// QRCode is a PNG data URL encoding Code.
	QRCode string `json:"qr_code" db:"qr_code"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SarprasPatch carries the mutable asset fields. Nil fields are left as-is.
type SarprasPatch struct {
	Name      *string
	Category  *string
	Location  *string
	Condition *string
}

// Empty reports whether the patch changes nothing.
func (p SarprasPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Location == nil && p.Condition == nil
}
