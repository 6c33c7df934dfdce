package captures

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPrune_DeletesOnlyFilesStrictlyBeforeCutoff(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	cutoff := Cutoff(now, 7)

	tests := []struct {
		name    string
		mtime   time.Time
		deleted bool
	}{
		{"old.jpg", cutoff.Add(-48 * time.Hour), true},
		{"just_old.jpg", cutoff.Add(-time.Second), true},
		{"at_cutoff.jpg", cutoff, false},
		{"just_new.jpg", cutoff.Add(time.Second), false},
		{"fresh.jpg", now, false},
		{"old_notes.txt", cutoff.Add(-time.Hour), true},
	}
	for _, tt := range tests {
		touch(t, filepath.Join(dir, tt.name), tt.mtime)
	}

	report, err := store.Prune(now, 7)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if report.Scanned != 6 || len(report.Deleted) != 3 || report.Kept != 3 || len(report.Failed) != 0 {
		t.Errorf("unexpected report: scanned=%d deleted=%d kept=%d failed=%d",
			report.Scanned, len(report.Deleted), report.Kept, len(report.Failed))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := os.Stat(filepath.Join(dir, tt.name))
			if exists := err == nil; exists == tt.deleted {
				t.Errorf("%s: exists=%v, want deleted=%v", tt.name, exists, tt.deleted)
			}
		})
	}
}

func TestPrune_RetentionWindows(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

	for _, days := range []int{1, 3, 7, 30} {
		dir := t.TempDir()
		cutoff := Cutoff(now, days)
		touch(t, filepath.Join(dir, "expired.jpg"), cutoff.Add(-time.Minute))
		touch(t, filepath.Join(dir, "retained.jpg"), cutoff.Add(time.Minute))

		report, err := NewStore(dir).Prune(now, days)
		if err != nil {
			t.Fatalf("days=%d: Prune failed: %v", days, err)
		}
		if len(report.Deleted) != 1 || report.Deleted[0] != filepath.Join(dir, "expired.jpg") {
			t.Errorf("days=%d: expected only expired.jpg deleted, got %v", days, report.Deleted)
		}
	}
}

func TestPrune_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "archive")
	if err := os.Mkdir(sub, 0750); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(sub, old, old); err != nil {
		t.Fatal(err)
	}

	report, err := NewStore(dir).Prune(time.Now(), 7)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("expected directories to be skipped, scanned %d", report.Scanned)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Errorf("expected subdirectory to be kept: %v", err)
	}
}

func TestPrune_MissingDirectory(t *testing.T) {
	report, err := NewStore(filepath.Join(t.TempDir(), "nope")).Prune(time.Now(), 7)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if report.Scanned != 0 || len(report.Deleted) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}
