package storage

import (
	"testing"
	"time"
)

func TestBuildDatasetFilePath(t *testing.T) {
	loadedAt := time.Date(2026, 7, 4, 23, 59, 0, 0, time.UTC)
	got, err := BuildDatasetFilePath("companies", loadedAt, 3)
	if err != nil {
		t.Fatalf("BuildDatasetFilePath() = %v", err)
	}
	want := "datasets/companies/date=2026-07-04/companies-00003.parquet"
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestBuildDatasetFilePathNormalizesToUTC(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	// Local midnight on the 5th is still the 4th in UTC.
	loadedAt := time.Date(2026, 7, 5, 0, 30, 0, 0, east)
	got, err := BuildDatasetFilePath("companies", loadedAt, 0)
	if err != nil {
		t.Fatalf("BuildDatasetFilePath() = %v", err)
	}
	if got != "datasets/companies/date=2026-07-04/companies-00000.parquet" {
		t.Fatalf("path = %q", got)
	}
}

func TestBuildDatasetFilePathRejectsBadInput(t *testing.T) {
	now := time.Now()
	if _, err := BuildDatasetFilePath("../etc", now, 0); err == nil {
		t.Fatal("traversal table name accepted")
	}
	if _, err := BuildDatasetFilePath("companies", now, -1); err == nil {
		t.Fatal("negative sequence accepted")
	}
}

func TestValidatePathComponent(t *testing.T) {
	valid := []string{"companies", "Companies_v2", "a", "table.name-01"}
	for _, value := range valid {
		if err := ValidatePathComponent(value, "table name"); err != nil {
			t.Fatalf("ValidatePathComponent(%q) = %v", value, err)
		}
	}

	invalid := []string{"", ".hidden", "-leading", "has space", "slash/inside", "..", "a/../b"}
	for _, value := range invalid {
		if err := ValidatePathComponent(value, "table name"); err == nil {
			t.Fatalf("ValidatePathComponent(%q) accepted", value)
		}
	}
}
