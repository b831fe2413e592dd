package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/db"
	"github.com/sarpras-lapor/apiserver/types"
)

const selectSarpras = `
		SELECT id, kode_sarpras, nama_sarpras, kategori, lokasi, kondisi, qr_code, created_at, updated_at
		FROM sarpras`

// SarprasRepository handles persistence for assets. Archived assets are
// invisible to every read.
type SarprasRepository struct {
	db *sql.DB
}

func NewSarprasRepository(db *sql.DB) *SarprasRepository {
	return &SarprasRepository{db: db}
}

func (r *SarprasRepository) List(ctx context.Context) ([]types.Sarpras, error) {
	rows, err := r.db.QueryContext(ctx, selectSarpras+`
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Sarpras, 0)
	for rows.Next() {
		item, err := scanSarpras(rows)
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

func (r *SarprasRepository) GetByID(ctx context.Context, id int) (types.Sarpras, error) {
	item, err := scanSarpras(r.db.QueryRowContext(ctx, selectSarpras+`
		WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return types.Sarpras{}, translate(err, nil)
	}
	return item, nil
}

// GetByCode looks an asset up by its exact, case-sensitive code.
func (r *SarprasRepository) GetByCode(ctx context.Context, code string) (types.Sarpras, error) {
	item, err := scanSarpras(r.db.QueryRowContext(ctx, selectSarpras+`
		WHERE kode_sarpras = $1 AND deleted_at IS NULL`, code))
	if err != nil {
		return types.Sarpras{}, translate(err, nil)
	}
	return item, nil
}

func (r *SarprasRepository) Create(ctx context.Context, item types.Sarpras) (types.Sarpras, error) {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `
		INSERT INTO sarpras (kode_sarpras, nama_sarpras, kategori, lokasi, kondisi, qr_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.Code,
		item.Name,
		item.Category,
		item.Location,
		item.Condition,
		item.QRCode,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID); err != nil {
		return types.Sarpras{}, translate(err, nil)
	}
	return item, nil
}

func (r *SarprasRepository) Update(ctx context.Context, id int, patch types.SarprasPatch) (types.Sarpras, error) {
	const query = `
		UPDATE sarpras
		SET nama_sarpras = COALESCE($1, nama_sarpras),
			kategori = COALESCE($2, kategori),
			lokasi = COALESCE($3, lokasi),
			kondisi = COALESCE($4, kondisi),
			updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING id, kode_sarpras, nama_sarpras, kategori, lokasi, kondisi, qr_code, created_at, updated_at`
	item, err := scanSarpras(r.db.QueryRowContext(
		ctx,
		query,
		patch.Name,
		patch.Category,
		patch.Location,
		patch.Condition,
		time.Now(),
		id,
	))
	if err != nil {
		return types.Sarpras{}, translate(err, nil)
	}
	return item, nil
}

// Archive soft-deletes an asset. Assets with reports that are still open
// are kept and ErrInUse is returned. The row lock serializes this against
// report creation, which share-locks the asset row.
func (r *SarprasRepository) Archive(ctx context.Context, id int) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var lockedID int
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sarpras
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE`, id).Scan(&lockedID)
		if err != nil {
			return translate(err, nil)
		}

		var open int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM laporan
			WHERE sarpras_id = $1 AND status IN ($2, $3)`,
			id, string(types.StatusPending), string(types.StatusInProgress),
		).Scan(&open)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrInUse
		}

		now := time.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE sarpras SET deleted_at = $1, updated_at = $1 WHERE id = $2`, now, id)
		return err
	})
}

func scanSarpras(row rowScanner) (types.Sarpras, error) {
	var item types.Sarpras
	err := row.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Category,
		&item.Location,
		&item.Condition,
		&item.QRCode,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}
