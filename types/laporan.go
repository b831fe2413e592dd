package types

import "time"

// Status is the triage state of a damage report.
type Status string

const (
	StatusPending    Status = "menunggu"
	StatusInProgress Status = "diproses"
	StatusDone       Status = "selesai"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusDone}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Open reports whether a report in this status still needs attention.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

// Laporan is a damage report filed by a user against an asset.
type Laporan struct {
	// ID is the unique identifier of the report.
	ID int `json:"id" db:"id"`

	// SarprasID references the reported asset.
	SarprasID int `json:"sarpras_id" db:"sarpras_id"`

	// UserID is the owning reporter. It never changes after creation.
	UserID int `json:"user_id" db:"user_id"`

	// Description is the free-text damage description.
	Description string `json:"deskripsi" db:"deskripsi"`

	// Location is a snapshot taken at creation time. It defaults to the
	// asset's location when the reporter leaves it empty.
	Location string `json:"lokasi" db:"lokasi"`

	// ReportDate is the calendar date the damage was observed.
	ReportDate time.Time `json:"tanggal_laporan" db:"tanggal_laporan"`

	// Photo is the object storage key of the attached photo, if any.
	Photo string `json:"foto,omitempty" db:"foto"`

	// Status is the triage state, advanced only by admins.
	Status Status `json:"status" db:"status"`

	// AdminNote is an optional note left by the admin handling the report.
	AdminNote string `json:"catatan_admin,omitempty" db:"catatan_admin"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Joined asset and reporter details, filled by read queries.
	SarprasName     string `json:"nama_sarpras,omitempty"`
	SarprasCode     string `json:"kode_sarpras,omitempty"`
	SarprasCategory string `json:"kategori,omitempty"`
	ReporterName    string `json:"nama_pelapor,omitempty"`
	ReporterEmail   string `json:"email_pelapor,omitempty"`
}

// LaporanFilter narrows a report listing. Zero values mean "any".
// Limit <= 0 returns every matching row.
type LaporanFilter struct {
	Status Status
	UserID int
	Limit  int
	Offset int
}

// LaporanPatch carries the owner-editable report fields. Nil fields are
// left as-is.
type LaporanPatch struct {
	Description *string
	Location    *string
	ReportDate  *time.Time
	Photo       *string
}

// Empty reports whether the patch changes nothing.
func (p LaporanPatch) Empty() bool {
	return p.Description == nil && p.Location == nil && p.ReportDate == nil && p.Photo == nil
}
