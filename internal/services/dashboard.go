package services

import (
	"context"

	"github.com/sarpras-lapor/apiserver/types"
)

// RecentLaporanCount is how many reports the dashboard lists.
const RecentLaporanCount = 10

// DashboardRepository defines the aggregate queries behind the dashboard.
type DashboardRepository interface {
	Stats(ctx context.Context, recent int) (types.Dashboard, error)
}

type DashboardService struct {
	repo DashboardRepository
}

func NewDashboardService(repo DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

func (s *DashboardService) Get(ctx context.Context) (types.Dashboard, error) {
	return s.repo.Stats(ctx, RecentLaporanCount)
}
