package export_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hbcai/internal/export"
	"hbcai/internal/model"
	"hbcai/internal/store"
)

func results(runID string) []model.PageResult {
	return []model.PageResult{
		{RunID: runID, Origin: "Talk:Z", Status: model.StatusFailed, Error: "found 0 threads, misconfiguration?"},
		{RunID: runID, Origin: "Talk:A", Target: "Talk:A/Archive index", Threads: 5, Status: model.StatusSaved},
		{RunID: runID, Origin: "Talk:B", Status: model.StatusFailed, Error: "[[Talk:B]]: Missing |first_archive="},
	}
}

func readExport(t *testing.T, path string) model.Export {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out model.Export
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestToJSONData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := export.ToJSONData("run-1", results("run-1"), path); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := readExport(t, path)
	if out.RunID != "run-1" || out.Stats.PagesTotal != 3 || out.Stats.PagesFailed != 2 || out.Stats.ThreadsTotal != 5 {
		t.Fatalf("unexpected export: %+v", out)
	}
	if out.Pages[0].Origin != "Talk:A" || out.Pages[2].Origin != "Talk:Z" {
		t.Fatalf("pages not sorted: %+v", out.Pages)
	}
}

func TestToJSON_FromStore(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	for _, r := range results("run-2") {
		if err := s.UpsertResult(ctx, r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.UpsertResult(ctx, model.PageResult{RunID: "other", Origin: "Talk:C", Status: model.StatusSaved}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	path := filepath.Join(dir, "report.json")
	if err := export.ToJSON(ctx, s, "run-2", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	if out := readExport(t, path); len(out.Pages) != 3 {
		t.Fatalf("expected only run-2 pages, got %d", len(out.Pages))
	}
}

func TestFailureLog(t *testing.T) {
	got := export.FailureLog(results("r"))
	want := "* [[Talk:B]]: Missing |first_archive=\n* [[Talk:Z]]: found 0 threads, misconfiguration?"
	if got != want {
		t.Fatalf("log = %q", got)
	}
	if export.FailureLog(nil) != "" {
		t.Fatalf("expected empty log")
	}
}
