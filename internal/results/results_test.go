package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/scoring"
)

func sampleItems() *Items {
	scored := []scoring.Scored{
		{
			Listing: listing.Listing{ID: "1", Title: "Go Developer", Organization: "Acme Inc.", Source: "lever", URL: "https://jobs.lever.co/acme/1"},
			Result:  scoring.Result{Score: 4.5, Tier: scoring.TierStrong},
		},
		{
			Listing: listing.Listing{ID: "2", Title: "Backend Engineer", Organization: "Globex", Source: "adzuna_gb", Provenance: []string{"adzuna_gb", "remotive"}},
			Result:  scoring.Result{Score: 3.1, Tier: scoring.TierPossible},
		},
		{
			Listing: listing.Listing{ID: "3", Title: "SRE", Organization: "ACME", Source: "greenhouse_acme"},
			Result:  scoring.Result{Score: 2.0, Tier: scoring.TierWeak},
		},
	}
	return New(scored, func(key string) bool { return key != "lever:1" })
}

func TestNewAnnotatesIsNew(t *testing.T) {
	items := sampleItems()
	if items.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", items.Len())
	}
	if items.Items[0].IsNew {
		t.Fatalf("expected lever:1 to be seen")
	}
	if got := items.CountNew(); got != 2 {
		t.Fatalf("expected 2 new items, got %d", got)
	}
}

func TestFindByID(t *testing.T) {
	items := sampleItems()
	if item := items.FindByID("adzuna_gb:2"); item == nil || item.Listing.Title != "Backend Engineer" {
		t.Fatalf("expected to find adzuna_gb:2, got %+v", item)
	}
	if item := items.FindByID("3"); item == nil || item.Listing.Source != "greenhouse_acme" {
		t.Fatalf("expected to find by bare id, got %+v", item)
	}
	if items.FindByID("missing") != nil {
		t.Fatalf("expected nil for unknown id")
	}
}

func TestExcludeByOrganizationPreservesOrder(t *testing.T) {
	items := sampleItems()
	removed := items.Exclude(ItemOrganizationField, []string{"acme"})

	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", removed)
	}
	if items.Len() != 1 || items.Items[0].Key() != "adzuna_gb:2" {
		t.Fatalf("unexpected items left: %+v", items.Items)
	}
}

func TestKeepPreservesRankedOrder(t *testing.T) {
	items := sampleItems()
	dropped := items.Keep(func(it *Item) bool { return it.Key() != "adzuna_gb:2" })

	if len(dropped) != 1 || dropped[0] != "adzuna_gb:2" {
		t.Fatalf("unexpected dropped keys: %v", dropped)
	}
	if items.Items[0].Key() != "lever:1" || items.Items[1].Key() != "greenhouse_acme:3" {
		t.Fatalf("order changed: %s, %s", items.Items[0].Key(), items.Items[1].Key())
	}
}

func TestReportByOrganization(t *testing.T) {
	report := sampleItems().ReportByOrganization()

	entries, ok := report["Globex"]
	if !ok {
		t.Fatalf("expected organization key in report")
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry["score"] != "3.10" {
		t.Fatalf("expected score 3.10, got %q", entry["score"])
	}
	if entry["sources"] != "[adzuna_gb remotive]" {
		t.Fatalf("unexpected sources: %q", entry["sources"])
	}
	if entry["new"] != "true" {
		t.Fatalf("expected new flag, got %q", entry["new"])
	}
}

func TestExcludedFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	excluded, err := GetExcludedFromFile(path)
	if err != nil {
		t.Fatalf("missing file should be empty: %v", err)
	}
	if len(excluded.Items) != 0 {
		t.Fatalf("expected empty list, got %d", len(excluded.Items))
	}

	excluded.Append(sampleItems().ToExcluded())
	excluded.Append(sampleItems().ToExcluded())
	if len(excluded.Items) != 3 {
		t.Fatalf("expected duplicates to be skipped, got %d", len(excluded.Items))
	}

	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("writing exclude file: %v", err)
	}

	loaded, err := GetExcludedFromFile(path)
	if err != nil {
		t.Fatalf("reading exclude file: %v", err)
	}
	keys := loaded.Keys()
	if len(keys) != 3 || keys[0] != "lever:1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestGetExcludedFromEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	excluded, err := GetExcludedFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(excluded.Items) != 0 {
		t.Fatalf("expected empty list")
	}
}

func TestDumpToTmpFile(t *testing.T) {
	path, err := sampleItems().DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat dump: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty dump")
	}
}
