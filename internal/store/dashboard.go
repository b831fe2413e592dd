package store

import (
	"context"
	"database/sql"

	"github.com/sarpras-lapor/apiserver/types"
)

// DashboardRepository computes the admin overview aggregates.
type DashboardRepository struct {
	db *sql.DB
}

func NewDashboardRepository(db *sql.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats returns report and asset aggregates plus the newest reports, at
// most recent of them. Every known status is present in StatusCount.
func (r *DashboardRepository) Stats(ctx context.Context, recent int) (types.Dashboard, error) {
	var dashboard types.Dashboard

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM laporan`).Scan(&dashboard.TotalLaporan); err != nil {
		return types.Dashboard{}, err
	}

	byStatus := make(map[types.Status]int, len(types.Statuses))
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM laporan GROUP BY status`)
	if err != nil {
		return types.Dashboard{}, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return types.Dashboard{}, err
		}
		byStatus[types.Status(status)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Dashboard{}, err
	}
	dashboard.StatusCount = make([]types.StatusCount, 0, len(types.Statuses))
	for _, status := range types.Statuses {
		dashboard.StatusCount = append(dashboard.StatusCount, types.StatusCount{Status: status, Count: byStatus[status]})
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sarpras WHERE deleted_at IS NULL`).Scan(&dashboard.TotalSarpras); err != nil {
		return types.Dashboard{}, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT kondisi, COUNT(1) FROM sarpras
		WHERE deleted_at IS NULL
		GROUP BY kondisi
		ORDER BY kondisi`)
	if err != nil {
		return types.Dashboard{}, err
	}
	defer rows.Close()
	dashboard.KondisiCount = make([]types.ConditionCount, 0)
	for rows.Next() {
		var item types.ConditionCount
		if err := rows.Scan(&item.Condition, &item.Count); err != nil {
			return types.Dashboard{}, err
		}
		dashboard.KondisiCount = append(dashboard.KondisiCount, item)
	}
	if err := rows.Err(); err != nil {
		return types.Dashboard{}, err
	}

	dashboard.RecentLaporan, err = listLaporan(ctx, r.db, types.LaporanFilter{Limit: recent})
	if err != nil {
		return types.Dashboard{}, err
	}
	return dashboard, nil
}
