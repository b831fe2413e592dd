package store

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/sarpras-lapor/apiserver/types"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name         string
		err          error
		onForeignKey error
		want         error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: ErrNotFound},
		{name: "unique violation", err: &pq.Error{Code: "23505", Constraint: "sarpras_kode_sarpras_key"}, want: ErrConflict},
		{name: "fk violation on insert", err: &pq.Error{Code: "23503"}, onForeignKey: ErrReferenceNotFound, want: ErrReferenceNotFound},
		{name: "fk violation on delete", err: &pq.Error{Code: "23503"}, onForeignKey: ErrInUse, want: ErrInUse},
		{name: "passthrough", err: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, tt.onForeignKey)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("translate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranslateKeepsConstraintName(t *testing.T) {
	err := translate(&pq.Error{Code: "23505", Constraint: "users_email_key"}, nil)
	if err == nil || err.Error() != "conflict: users_email_key" {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestListLaporanQueryBuildsFilters(t *testing.T) {
	query, args := listLaporanQuery(types.LaporanFilter{Status: types.StatusInProgress, UserID: 7, Limit: 10, Offset: 20})
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d (%v)", len(args), args)
	}
	for _, fragment := range []string{"l.status = $1", "l.user_id = $2", "ORDER BY l.created_at DESC, l.id DESC", "LIMIT $3 OFFSET $4"} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q:\n%s", fragment, query)
		}
	}

	query, args = listLaporanQuery(types.LaporanFilter{})
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	if strings.Contains(query, "WHERE") || strings.Contains(query, "LIMIT") {
		t.Errorf("unfiltered query should not have WHERE/LIMIT:\n%s", query)
	}
}
