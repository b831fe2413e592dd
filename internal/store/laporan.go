package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/db"
	"github.com/sarpras-lapor/apiserver/types"
)

const reportDateLayout = "2006-01-02"

const selectLaporan = `
		SELECT l.id, l.sarpras_id, l.user_id, l.deskripsi, l.lokasi, l.tanggal_laporan,
		       COALESCE(l.foto, ''), l.status, COALESCE(l.catatan_admin, ''), l.created_at, l.updated_at,
		       s.nama_sarpras, s.kode_sarpras, s.kategori, u.nama, u.email
		FROM laporan l
		JOIN sarpras s ON s.id = l.sarpras_id
		JOIN users u ON u.id = l.user_id`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LaporanRepository handles persistence for damage reports.
type LaporanRepository struct {
	db *sql.DB
}

func NewLaporanRepository(db *sql.DB) *LaporanRepository {
	return &LaporanRepository{db: db}
}

// List returns reports matching filter, most recent first.
func (r *LaporanRepository) List(ctx context.Context, filter types.LaporanFilter) ([]types.Laporan, error) {
	return listLaporan(ctx, r.db, filter)
}

func (r *LaporanRepository) Get(ctx context.Context, id int) (types.Laporan, error) {
	item, err := scanLaporan(r.db.QueryRowContext(ctx, selectLaporan+` WHERE l.id = $1`, id))
	if err != nil {
		return types.Laporan{}, translate(err, nil)
	}
	return item, nil
}

// Create validates the referenced asset and inserts the report in one
// transaction. An empty location is replaced by the asset's location at
// this moment. ErrReferenceNotFound is returned when the asset does not
// exist or is archived.
func (r *LaporanRepository) Create(ctx context.Context, item types.Laporan) (types.Laporan, error) {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var assetLocation string
		err := tx.QueryRowContext(ctx, `
			SELECT lokasi FROM sarpras
			WHERE id = $1 AND deleted_at IS NULL
			FOR SHARE`, item.SarprasID).Scan(&assetLocation)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrReferenceNotFound
			}
			return err
		}
		if strings.TrimSpace(item.Location) == "" {
			item.Location = assetLocation
		}

		const query = `
			INSERT INTO laporan (sarpras_id, user_id, deskripsi, lokasi, tanggal_laporan, foto, status, catatan_admin, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10)
			RETURNING id`
		return tx.QueryRowContext(
			ctx,
			query,
			item.SarprasID,
			item.UserID,
			item.Description,
			item.Location,
			item.ReportDate.Format(reportDateLayout),
			item.Photo,
			string(item.Status),
			item.AdminNote,
			item.CreatedAt,
			item.UpdatedAt,
		).Scan(&item.ID)
	})
	if err != nil {
		return types.Laporan{}, translate(err, ErrReferenceNotFound)
	}
	return item, nil
}

// Update applies the owner-editable fields of patch. Status and ownership
// are not touched.
func (r *LaporanRepository) Update(ctx context.Context, id int, patch types.LaporanPatch) error {
	var reportDate *string
	if patch.ReportDate != nil {
		formatted := patch.ReportDate.Format(reportDateLayout)
		reportDate = &formatted
	}

	const query = `
		UPDATE laporan
		SET deskripsi = COALESCE($1, deskripsi),
			lokasi = COALESCE($2, lokasi),
			tanggal_laporan = COALESCE($3::date, tanggal_laporan),
			foto = COALESCE($4, foto),
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		patch.Description,
		patch.Location,
		reportDate,
		patch.Photo,
		time.Now(),
		id,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// UpdateStatus moves a report from status from to status to. The write only
// applies while the report is still in from; otherwise ErrConflict is
// returned. A nil note keeps the existing note.
func (r *LaporanRepository) UpdateStatus(ctx context.Context, id int, from, to types.Status, note *string) error {
	const query = `
		UPDATE laporan
		SET status = $1,
			catatan_admin = COALESCE($2, catatan_admin),
			updated_at = $3
		WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, string(to), note, time.Now(), id, string(from))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM laporan WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: status changed concurrently", ErrConflict)
}

func (r *LaporanRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM laporan WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func listLaporan(ctx context.Context, q queryer, filter types.LaporanFilter) ([]types.Laporan, error) {
	query, args := listLaporanQuery(filter)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Laporan, 0)
	for rows.Next() {
		item, err := scanLaporan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func listLaporanQuery(filter types.LaporanFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("l.user_id = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(selectLaporan)
	if len(conditions) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString("\n\t\tORDER BY l.created_at DESC, l.id DESC")
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, filter.Limit, offset)
		fmt.Fprintf(&b, "\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return b.String(), args
}

func scanLaporan(row rowScanner) (types.Laporan, error) {
	var item types.Laporan
	var status string
	err := row.Scan(
		&item.ID,
		&item.SarprasID,
		&item.UserID,
		&item.Description,
		&item.Location,
		&item.ReportDate,
		&item.Photo,
		&status,
		&item.AdminNote,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.SarprasName,
		&item.SarprasCode,
		&item.SarprasCategory,
		&item.ReporterName,
		&item.ReporterEmail,
	)
	item.Status = types.Status(status)
	return item, err
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
