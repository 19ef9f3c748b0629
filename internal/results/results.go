// Package results holds the ranked, annotated listings of a run.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spigell/jobscout/internal/dedupe"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/scoring"
)

const (
	ItemKeyField          = "Key"
	ItemOrganizationField = "Organization"
	ItemDedupeKeyField    = "DedupeKey"
)

// Items is the ranked output of a run. Order is significant.
type Items struct {
	Items []*Item `json:"items"`
}

// Item is one ranked listing.
type Item struct {
	Listing listing.Listing `json:"listing"`
	Score   scoring.Result  `json:"score"`
	IsNew   bool            `json:"is_new"`
}

// New wraps ranked listings. isNew reports the tracker verdict per listing key;
// a nil func marks everything new.
func New(scored []scoring.Scored, isNew func(key string) bool) *Items {
	items := &Items{Items: make([]*Item, 0, len(scored))}
	for _, s := range scored {
		fresh := true
		if isNew != nil {
			fresh = isNew(s.Listing.Key())
		}
		items.Items = append(items.Items, &Item{
			Listing: s.Listing,
			Score:   s.Result,
			IsNew:   fresh,
		})
	}
	return items
}

// Key returns the tracking key of the item.
func (it *Item) Key() string { return it.Listing.Key() }

// Provenance lists every source that reported the listing.
func (it *Item) Provenance() []string {
	if len(it.Listing.Provenance) > 0 {
		return it.Listing.Provenance
	}
	return []string{it.Listing.Source}
}

func (it *Item) GetStringField(name string) string {
	switch name {
	case ItemKeyField:
		return it.Key()
	case ItemOrganizationField:
		return dedupe.NormalizeOrganization(it.Listing.Organization)
	case ItemDedupeKeyField:
		return dedupe.Key(it.Listing)
	default:
		return ""
	}
}

func (v *Items) Len() int {
	return len(v.Items)
}

func (v *Items) FindByID(id string) *Item {
	for _, item := range v.Items {
		if item.Key() == id || item.Listing.ID == id {
			return item
		}
	}
	return nil
}

// Exclude removes every item whose field name equals one of targets and
// returns the removed keys. Ranked order is preserved.
func (v *Items) Exclude(name string, targets []string) []string {
	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[target] = struct{}{}
	}

	return v.Keep(func(it *Item) bool {
		_, found := set[it.GetStringField(name)]
		return !found
	})
}

// Keep retains the items for which keep returns true and returns the keys of
// the dropped ones. Ranked order is preserved.
func (v *Items) Keep(keep func(*Item) bool) []string {
	var dropped []string
	kept := v.Items[:0]
	for _, item := range v.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.Key())
	}
	for i := len(kept); i < len(v.Items); i++ {
		v.Items[i] = nil
	}
	v.Items = kept
	return dropped
}

// CountNew returns how many items were not seen in earlier runs.
func (v *Items) CountNew() int {
	n := 0
	for _, item := range v.Items {
		if item.IsNew {
			n++
		}
	}
	return n
}

// ReportByOrganization groups a printable summary of the items by organization.
func (v *Items) ReportByOrganization() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range v.Items {
		l := item.Listing
		key := l.Organization
		if key == "" {
			key = "(unknown)"
		}
		entry := map[string]string{
			"title":    l.Title,
			"url":      l.URL,
			"location": l.Location,
			"score":    fmt.Sprintf("%.2f", item.Score.Score),
			"tier":     string(item.Score.Tier),
			"sources":  fmt.Sprint(item.Provenance()),
		}
		if l.Compensation != "" {
			entry["compensation"] = l.Compensation
		}
		if item.IsNew {
			entry["new"] = "true"
		}
		report[key] = append(report[key], entry)
	}
	return report
}

func (v *Items) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobscout_results_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (v *Items) ToExcluded() *ExcludedItems {
	excluded := &ExcludedItems{}
	now := time.Now().UTC()
	for _, item := range v.Items {
		excluded.Items = append(excluded.Items, &ExcludedItem{
			Key:          item.Key(),
			URL:          item.Listing.URL,
			Organization: item.Listing.Organization,
			ExcludedAt:   now,
		})
	}
	return excluded
}
