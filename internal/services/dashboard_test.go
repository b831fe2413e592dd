package services

import (
	"context"
	"testing"

	"github.com/sarpras-lapor/apiserver/types"
)

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ac := env.createAsset(t, "AC-101", "Ruang 101")
	env.createAsset(t, "PRJ-07", "Aula")
	if _, err := env.sarpras.Update(ctx, ac.ID, SarprasUpdate{Condition: strPtr(types.ConditionMajorDamage)}); err != nil {
		t.Fatalf("update asset: %v", err)
	}

	var last types.Laporan
	for i := 0; i < RecentLaporanCount+2; i++ {
		last = env.createReport(t, env.alice, ac)
	}
	if _, err := env.laporan.UpdateStatus(ctx, env.admin, last.ID, StatusUpdate{Status: types.StatusInProgress}); err != nil {
		t.Fatalf("update status: %v", err)
	}

	dashboard, err := env.dashboard.Get(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.TotalLaporan != RecentLaporanCount+2 || dashboard.TotalSarpras != 2 {
		t.Fatalf("unexpected totals %+v", dashboard)
	}
	want := map[types.Status]int{
		types.StatusPending:    RecentLaporanCount + 1,
		types.StatusInProgress: 1,
		types.StatusDone:       0,
	}
	if len(dashboard.StatusCount) != len(types.Statuses) {
		t.Fatalf("expected every status, got %+v", dashboard.StatusCount)
	}
	for _, sc := range dashboard.StatusCount {
		if sc.Count != want[sc.Status] {
			t.Fatalf("status %s: expected %d, got %d", sc.Status, want[sc.Status], sc.Count)
		}
	}
	if len(dashboard.KondisiCount) != 2 {
		t.Fatalf("expected 2 condition groups, got %+v", dashboard.KondisiCount)
	}
	if len(dashboard.RecentLaporan) != RecentLaporanCount || dashboard.RecentLaporan[0].ID != last.ID {
		t.Fatalf("unexpected recent reports %v", ids(dashboard.RecentLaporan))
	}
}
