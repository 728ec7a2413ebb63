package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestRunTagRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 28, 9, 5, 7, 0, time.UTC)
	tag := RunTag(at)
	if tag != "2024-03-28_090507" {
		t.Fatalf("tag = %q", tag)
	}
	got, ok := ParseRunTag(tag, time.UTC)
	if !ok || !got.Equal(at) {
		t.Fatalf("parse %q = %v, %v", tag, got, ok)
	}
	if _, ok := ParseRunTag("run-1", time.UTC); ok {
		t.Fatalf("expected free-form tag to be rejected")
	}
}

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("", 5) != 5 || ParseIntDefault("x", 5) != 5 || ParseIntDefault("7", 5) != 7 {
		t.Fatalf("unexpected ParseIntDefault results")
	}
}
