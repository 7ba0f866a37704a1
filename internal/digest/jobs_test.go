package digest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadJobs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digests.yaml")
	body := `timezone: UTC
jobs:
  - name: Morning catch-up
    schedule: "0 8 * * *"
    chats: [Sarah, "Work Group"]
    messages: 30
  - name: Hourly sweep
    schedule: "@hourly"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write jobs: %v", err)
	}

	file, err := LoadJobs(path)
	if err != nil {
		t.Fatalf("LoadJobs error: %v", err)
	}
	if len(file.Jobs) != 2 {
		t.Fatalf("jobs = %d", len(file.Jobs))
	}
	if file.Jobs[0].Messages != 30 {
		t.Fatalf("messages = %d", file.Jobs[0].Messages)
	}
	if file.Jobs[1].Messages != 20 {
		t.Fatalf("default messages = %d", file.Jobs[1].Messages)
	}
	if len(file.Jobs[0].Chats) != 2 || file.Jobs[0].Chats[1] != "Work Group" {
		t.Fatalf("chats = %v", file.Jobs[0].Chats)
	}
	if loc, err := file.Location(); err != nil || loc != time.UTC {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
}

func TestLoadJobs_BadSchedule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digests.yaml")
	body := "jobs:\n  - name: broken\n    schedule: \"not a cron expr\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write jobs: %v", err)
	}
	if _, err := LoadJobs(path); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "valid", job: Job{Name: "a", Schedule: "*/5 * * * *"}},
		{name: "descriptor", job: Job{Name: "a", Schedule: "@daily"}},
		{name: "missing name", job: Job{Schedule: "@daily"}, wantErr: true},
		{name: "missing schedule", job: Job{Name: "a"}, wantErr: true},
		{name: "six fields", job: Job{Name: "a", Schedule: "0 0 8 * * *"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobNextRun(t *testing.T) {
	job := Job{Name: "a", Schedule: "0 8 * * *"}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next, err := job.NextRun(now, time.UTC)
	if err != nil {
		t.Fatalf("NextRun error: %v", err)
	}
	want := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", next, want)
	}
}

func TestLoadDigestConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"digest": {"enabled": true, "jobs_path": "jobs/digests.yaml"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadDigestConfig(path)
	if err != nil {
		t.Fatalf("LoadDigestConfig error: %v", err)
	}
	if !cfg.Enabled || cfg.JobsPath != "jobs/digests.yaml" {
		t.Fatalf("cfg = %+v", cfg)
	}

	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = LoadDigestConfig(path)
	if err != nil {
		t.Fatalf("LoadDigestConfig error: %v", err)
	}
	if cfg.Enabled || cfg.JobsPath != "digests.yaml" {
		t.Fatalf("defaults = %+v", cfg)
	}
}
