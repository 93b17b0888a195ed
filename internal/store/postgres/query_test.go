package postgres

import (
	"testing"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

func TestAppendListOpts(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := appendListOpts("SELECT 1 FROM flows WHERE wallet = $1", []any{"0xabc"}, "created_at",
		domain.ListOpts{Since: &since, Limit: 10, Offset: 20})

	want := "SELECT 1 FROM flows WHERE wallet = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	if query != want {
		t.Errorf("query\n got %q\nwant %q", query, want)
	}
	if len(args) != 4 || args[2] != 10 || args[3] != 20 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestAppendListOpts_Empty(t *testing.T) {
	query, args := appendListOpts("SELECT 1 FROM audit_log WHERE 1=1", nil, "created_at", domain.ListOpts{})
	if query != "SELECT 1 FROM audit_log WHERE 1=1 ORDER BY created_at DESC" {
		t.Errorf("unexpected query %q", query)
	}
	if len(args) != 0 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", Database: "omc", User: "u", Password: "p"})
	if got != "postgres://u:p@db:5432/omc?sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x"}); got != "postgres://x" {
		t.Errorf("explicit DSN = %q", got)
	}
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "0001_flows.sql" || names[1] != "0002_audit_log.sql" {
		t.Errorf("unexpected migrations %v", names)
	}
}
