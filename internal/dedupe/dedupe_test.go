package dedupe

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobscout/internal/listing"
)

func sample() []listing.Listing {
	return []listing.Listing{
		{ID: "a1", Title: "Senior Backend Engineer", Organization: "Acme Corp", Location: "Remote", Source: "remotive", Origin: listing.OriginAPI, URL: "https://remotive.com/jobs/a1"},
		{ID: "77", Title: "Senior Backend Engineer", Organization: "Acme Corp", Location: "Remote", Source: "greenhouse-acme", Origin: listing.OriginDirect, Compensation: ""},
		{ID: "s9", Title: "senior backend engineer!", Organization: "ACME, Corp.", Location: "remote", Source: "board", Origin: listing.OriginScraped, Compensation: "$150k"},
		{ID: "z1", Title: "Platform Engineer", Organization: "Globex", Location: "Berlin", Source: "lever-globex", Origin: listing.OriginDirect, URL: "https://jobs.lever.co/globex/z1/"},
		{ID: "z2", Title: "Platform Eng.", Organization: "Globex GmbH", Location: "Berlin, DE", Source: "adzuna-de", Origin: listing.OriginAPI, URL: "http://www.jobs.lever.co/globex/z1?utm_source=adzuna#apply"},
		{ID: "q1", Title: "Data Engineer", Organization: "Initech", Location: "Austin", Source: "adzuna-us", Origin: listing.OriginAPI},
	}
}

func TestAcmeScenario(t *testing.T) {
	res := Dedupe([]listing.Listing{
		{ID: "1", Title: "Senior Backend Engineer", Organization: "Acme Corp", Location: "Remote", Source: "remotive", Origin: listing.OriginAPI},
		{ID: "2", Title: "Senior Backend Engineer", Organization: "Acme Corp", Location: "Remote", Source: "arbeitnow", Origin: listing.OriginAPI},
	})

	require.Len(t, res.Listings, 1)
	got := res.Listings[0]
	assert.Equal(t, "arbeitnow", got.Source)
	assert.Equal(t, []string{"arbeitnow", "remotive"}, got.Provenance)
	assert.Equal(t, []string{"arbeitnow", "remotive"}, res.Provenance[got.Key()])
	assert.Equal(t, Stats{Input: 2, Output: 1, Merged: 1}, res.Stats)
}

func TestSurvivorFollowsSourcePriority(t *testing.T) {
	res := Dedupe(sample())
	require.Len(t, res.Listings, 3)

	byID := map[string]listing.Listing{}
	for _, l := range res.Listings {
		byID[l.ID] = l
	}

	acme, ok := byID["77"]
	require.True(t, ok, "direct listing must survive")
	assert.Equal(t, []string{"board", "greenhouse-acme", "remotive"}, acme.Provenance)
	// Filled from the lower-priority scraped copy.
	assert.Equal(t, "$150k", acme.Compensation)
	assert.Equal(t, "https://remotive.com/jobs/a1", acme.URL)

	globex, ok := byID["z1"]
	require.True(t, ok, "URL match must merge differently worded postings")
	assert.Equal(t, []string{"adzuna-de", "lever-globex"}, globex.Provenance)

	assert.Contains(t, byID, "q1")
}

func TestDedupeIsFixedPoint(t *testing.T) {
	first := Dedupe(sample())
	second := Dedupe(first.Listings)

	assert.Equal(t, first.Listings, second.Listings)
	assert.Equal(t, first.Provenance, second.Provenance)
	assert.Zero(t, second.Stats.Merged)
}

func TestDedupeIgnoresInputOrder(t *testing.T) {
	want, err := json.Marshal(Dedupe(sample()).Listings)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := sample()
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := json.Marshal(Dedupe(shuffled).Listings)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
}

func TestDedupeDoesNotModifyInput(t *testing.T) {
	input := sample()
	_ = Dedupe(input)
	assert.Equal(t, sample(), input)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "senior backend engineer", NormalizeText("  Senior Backend-Engineer!! "))
	assert.Equal(t, "acme", NormalizeOrganization("ACME, Inc."))
	assert.Equal(t, "acme", NormalizeOrganization("Acme Corp Ltd"))
	assert.Equal(t, "inc", NormalizeOrganization("Inc"))

	assert.Equal(t,
		NormalizeURL("https://jobs.example.com/p/1/?b=2&a=1"),
		NormalizeURL("http://WWW.jobs.example.com/p/1?a=1&utm_campaign=x&b=2#top"),
	)
	assert.Equal(t, "", NormalizeURL("not a url"))
}
