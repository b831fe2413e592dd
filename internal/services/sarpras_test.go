package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sarpras-lapor/apiserver/types"
)

func TestSarprasCreateDefaultsAndQR(t *testing.T) {
	env := newTestEnv(t)
	item := env.createAsset(t, "AC-101", "Ruang 101")

	if item.Condition != types.ConditionGood {
		t.Fatalf("expected default condition %q, got %q", types.ConditionGood, item.Condition)
	}
	if !strings.HasPrefix(item.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected data URL, got %q", item.QRCode)
	}

	again, err := env.sarpras.encoder.DataURL("AC-101")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if again != item.QRCode {
		t.Fatal("expected QR encoding to be deterministic")
	}

	png, got, err := env.sarpras.QRImage(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("qr image: %v", err)
	}
	if got.ID != item.ID || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("unexpected qr image for %+v", got)
	}
}

func TestSarprasCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   SarprasInput
	}{
		{name: "missing code", in: SarprasInput{Name: "Kursi"}},
		{name: "blank code", in: SarprasInput{Code: "  ", Name: "Kursi"}},
		{name: "missing name", in: SarprasInput{Code: "KR-1"}},
		{name: "code too long", in: SarprasInput{Code: strings.Repeat("K", 65), Name: "Kursi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.sarpras.Create(context.Background(), env.admin, tt.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSarprasDuplicateCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAsset(t, "AC-101", "Ruang 101")

	_, err := env.sarpras.Create(ctx, env.admin, SarprasInput{Code: "AC-101", Name: "Duplicate"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	items, err := env.sarpras.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected no new row, got %d assets", len(items))
	}
}

func TestSarprasScanResolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createAsset(t, "AC-101", "Ruang 101")

	got, err := env.sarpras.GetByCode(ctx, "AC-101")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != created.ID || got.Code != "AC-101" {
		t.Fatalf("unexpected asset %+v", got)
	}

	for _, code := range []string{"AC-999", "ac-101", " AC-101"} {
		if _, err := env.sarpras.GetByCode(ctx, code); !errors.Is(err, ErrNotFound) {
			t.Fatalf("resolve %q: expected not found, got %v", code, err)
		}
	}
}

func TestSarprasUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.createAsset(t, "AC-101", "Ruang 101")

	updated, err := env.sarpras.Update(ctx, item.ID, SarprasUpdate{
		Code:      strPtr("AC-101"),
		Condition: strPtr(types.ConditionMinorDamage),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Condition != types.ConditionMinorDamage || updated.Name != item.Name || updated.Location != item.Location {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := env.sarpras.Update(ctx, item.ID, SarprasUpdate{Code: strPtr("AC-102")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected code change to be rejected, got %v", err)
	}
	if _, err := env.sarpras.Update(ctx, item.ID, SarprasUpdate{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty update to be rejected, got %v", err)
	}
	if _, err := env.sarpras.Update(ctx, 999, SarprasUpdate{Name: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSarprasDeleteGuardsOpenReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	asset := env.createAsset(t, "AC-101", "Ruang 101")
	report := env.createReport(t, env.alice, asset)

	if err := env.sarpras.Delete(ctx, env.admin, asset.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict while report is open, got %v", err)
	}

	if _, err := env.laporan.UpdateStatus(ctx, env.admin, report.ID, StatusUpdate{Status: types.StatusDone}); err != nil {
		t.Fatalf("close report: %v", err)
	}
	if err := env.sarpras.Delete(ctx, env.admin, asset.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.sarpras.Get(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected archived asset to be hidden, got %v", err)
	}

	got, err := env.laporan.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("historical report: %v", err)
	}
	if got.SarprasCode != "AC-101" {
		t.Fatalf("expected report to keep joining the archived asset, got %+v", got)
	}

	if _, err := env.sarpras.Create(ctx, env.admin, SarprasInput{Code: "AC-101", Name: "Reuse"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected archived code to stay reserved, got %v", err)
	}
	if _, err := env.laporan.Create(ctx, env.alice, LaporanInput{SarprasID: asset.ID, Description: "x", ReportDate: "2026-02-10"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected reports on archived asset to be rejected, got %v", err)
	}
}
