// Package dedupe collapses listings that describe the same posting.
//
// Two listings are the same posting when their normalized (title,
// organization, location) tuples are equal or their normalized URLs are
// equal. Groups are closed transitively. The survivor of a group is the
// listing with the lowest (origin, source, id): direct boards win over API
// aggregators, which win over scraped boards.
package dedupe

import (
	"sort"

	"github.com/spigell/jobscout/internal/listing"
)

type Stats struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	// Merged counts listings absorbed into another one.
	Merged int `json:"merged"`
}

type Result struct {
	Listings []listing.Listing
	Stats    Stats
	// Provenance maps each surviving listing key to every contributing source.
	Provenance map[string][]string
}

// Key is the normalized (title, organization, location) tuple of l.
func Key(l listing.Listing) string {
	return NormalizeText(l.Title) + "|" + NormalizeOrganization(l.Organization) + "|" + NormalizeText(l.Location)
}

// Dedupe merges duplicate listings. The input is not modified; the output is
// sorted by Key and then by listing key, so it does not depend on input
// order. Provenance already present on the input is carried over, which makes
// Dedupe(Dedupe(x).Listings) equal to Dedupe(x).
func Dedupe(listings []listing.Listing) Result {
	n := len(listings)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	byTuple := make(map[string]int, n)
	byURL := make(map[string]int, n)
	for i, l := range listings {
		if key := Key(l); key != "||" {
			if j, ok := byTuple[key]; ok {
				union(i, j)
			} else {
				byTuple[key] = i
			}
		}
		if u := NormalizeURL(l.URL); u != "" {
			if j, ok := byURL[u]; ok {
				union(i, j)
			} else {
				byURL[u] = i
			}
		}
	}

	groups := make(map[int][]int)
	for i := range listings {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	res := Result{
		Listings:   make([]listing.Listing, 0, len(groups)),
		Stats:      Stats{Input: n},
		Provenance: make(map[string][]string, len(groups)),
	}

	for _, members := range groups {
		group := make([]listing.Listing, len(members))
		for i, idx := range members {
			group[i] = listings[idx]
		}
		sort.Slice(group, func(i, j int) bool { return less(group[i], group[j]) })

		survivor := merge(group)
		res.Listings = append(res.Listings, survivor)
		res.Provenance[survivor.Key()] = survivor.Provenance
	}

	sort.Slice(res.Listings, func(i, j int) bool {
		ki, kj := Key(res.Listings[i]), Key(res.Listings[j])
		if ki != kj {
			return ki < kj
		}
		return res.Listings[i].Key() < res.Listings[j].Key()
	})

	res.Stats.Output = len(res.Listings)
	res.Stats.Merged = res.Stats.Input - res.Stats.Output

	return res
}

// less orders listings by source priority.
func less(a, b listing.Listing) bool {
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.ID < b.ID
}

// merge returns a copy of the first listing of a priority-sorted group with
// the union of all sources as provenance. Empty fields outside the tuple key
// are filled from lower-priority members.
func merge(group []listing.Listing) listing.Listing {
	survivor := group[0]

	sourceSet := make(map[string]struct{})
	for _, l := range group {
		if l.Source != "" {
			sourceSet[l.Source] = struct{}{}
		}
		for _, s := range l.Provenance {
			sourceSet[s] = struct{}{}
		}
	}

	for _, l := range group[1:] {
		if survivor.Compensation == "" {
			survivor.Compensation = l.Compensation
		}
		if survivor.PostedAt == nil && l.PostedAt != nil {
			posted := *l.PostedAt
			survivor.PostedAt = &posted
		}
		if survivor.Description == "" {
			survivor.Description = l.Description
		}
		if survivor.URL == "" {
			survivor.URL = l.URL
		}
		if survivor.Arrangement == "" || survivor.Arrangement == listing.ArrangementUnknown {
			if l.Arrangement != "" && l.Arrangement != listing.ArrangementUnknown {
				survivor.Arrangement = l.Arrangement
			}
		}
	}

	provenance := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		provenance = append(provenance, s)
	}
	sort.Strings(provenance)
	survivor.Provenance = provenance

	return survivor
}
