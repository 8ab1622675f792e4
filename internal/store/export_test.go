package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExportCarriesVersionDataAndTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	s, err := Open(NewMemoryBackend(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	out, err := s.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var env struct {
		Version    int             `json:"version"`
		Data       json.RawMessage `json:"data"`
		ExportedAt string          `json:"exportedAt"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("export does not parse: %v", err)
	}
	if env.Version != SchemaVersion {
		t.Fatalf("version = %d, want %d", env.Version, SchemaVersion)
	}
	if env.ExportedAt != "2026-08-30T10:00:00Z" {
		t.Fatalf("exportedAt = %q", env.ExportedAt)
	}
	if len(env.Data) == 0 {
		t.Fatal("export has no data payload")
	}

	if got := s.ExportFilename(); got != "darkhaven_database_2026-08-30.json" {
		t.Fatalf("ExportFilename() = %q", got)
	}
	if got := s.SQLFilename(); got != "darkhaven_database_2026-08-30.sql" {
		t.Fatalf("SQLFilename() = %q", got)
	}
}

func TestImportRoundTrip(t *testing.T) {
	t.Parallel()

	source, _ := openTestStore(t)
	if err := source.SetUser(&Identity{Username: "exported", IsAdmin: true}); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	if _, err := source.AddRule(1, "Be kind", "No flaming."); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	exported, err := source.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target, backend := openTestStore(t)
	if err := target.Import(exported); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	user := target.User()
	if user == nil || user.Username != "exported" {
		t.Fatalf("imported user = %+v", user)
	}
	rules := target.Rules()
	if len(rules) != 1 || rules[0].Title != "Be kind" {
		t.Fatalf("imported rules = %+v", rules)
	}

	// The import was persisted, not just held in memory.
	reopened, err := Open(backend)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if u := reopened.User(); u == nil || u.Username != "exported" {
		t.Fatalf("persisted imported user = %+v", u)
	}
}

func TestImportRejectsPayloadWithoutData(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	if err := s.SetUser(&Identity{Username: "survivor"}); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"no data field", `{"version": 1, "exportedAt": "2026-01-01T00:00:00Z"}`},
		{"null data", `{"version": 1, "data": null}`},
		{"not json", "definitely not json"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Import(tt.payload); err == nil {
				t.Fatal("expected import to fail")
			}
			if user := s.User(); user == nil || user.Username != "survivor" {
				t.Fatalf("failed import modified the document: %+v", user)
			}
		})
	}
}

func TestExportSQLEmitsInsertPerRow(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	if _, err := s.AddNews("It's live", "quote ' heavy", "o'brien", "2026-01-01"); err != nil {
		t.Fatalf("AddNews() error = %v", err)
	}

	out, err := s.ExportSQL()
	if err != nil {
		t.Fatalf("ExportSQL() error = %v", err)
	}

	if !strings.HasPrefix(out, "-- Dark Haven Database Export") {
		t.Fatalf("missing header, got %q", out[:40])
	}
	if !strings.Contains(out, "-- Table: news") {
		t.Fatal("missing news table section")
	}
	if !strings.Contains(out, "INSERT INTO news (") {
		t.Fatal("missing news insert")
	}
	if !strings.Contains(out, "'o''brien'") {
		t.Fatal("single quotes are not doubled")
	}
	if !strings.Contains(out, "-- Table: wikiCategories") {
		t.Fatal("seeded wiki categories missing from dump")
	}
	// Empty tables emit nothing.
	if strings.Contains(out, "-- Table: rules") {
		t.Fatal("empty rules table should be omitted")
	}
}

func TestReadableSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int
		want  string
	}{
		{512, "512 bytes"},
		{2048, "2.00 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
	}
	for _, tt := range tests {
		if got := readableSize(tt.bytes); got != tt.want {
			t.Fatalf("readableSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestSizeReportsExportLength(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	bytes, readable, err := s.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if bytes <= 0 {
		t.Fatalf("Size() bytes = %d", bytes)
	}
	if readable == "" {
		t.Fatal("Size() readable rendering is empty")
	}
}
