package clickhouse

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "microgrid",
		User:        "default",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
		AsyncInsert: true,
	})
	if !strings.HasPrefix(dsn, "clickhouse://default:p%40ss@ch:9000/microgrid?") {
		t.Fatalf("unexpected dsn %s", dsn)
	}
	for _, want := range []string{"dial_timeout=5s", "async_insert=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %s missing %s", dsn, want)
		}
	}
	if strings.Contains(dsn, "wait_for_async_insert") {
		t.Fatalf("wait flag set without being requested: %s", dsn)
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "d", UseHTTP: true})
	if !strings.HasPrefix(dsn, "http://") {
		t.Fatalf("expected http scheme, got %s", dsn)
	}
}

func TestRecordsSchema(t *testing.T) {
	stmts := RecordsSchema("microgrid", "records")
	if len(stmts) != 2 || !strings.Contains(stmts[1], "microgrid.records") || !strings.Contains(stmts[1], "ORDER BY (run_tag, iteration)") {
		t.Fatalf("unexpected schema %v", stmts)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
