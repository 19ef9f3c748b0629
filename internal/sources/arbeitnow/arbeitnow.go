// Package arbeitnow reads the Arbeitnow job board API. The API has no search
// parameter, so postings are matched against the query locally.
package arbeitnow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind   = "arbeitnow"
	apiURL = "https://www.arbeitnow.com/api/job-board-api"
)

func init() {
	sources.Register(Kind, Kind, New)
}

type Options struct {
	APIURL string `mapstructure:"api_url"`
}

type Fetcher struct {
	sources.Base
	opts Options
}

func New(cfg sources.Config, deps sources.Deps) (sources.Fetcher, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if opts.APIURL == "" {
		opts.APIURL = apiURL
	}

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts}, nil
}

type response struct {
	Data  []job `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

type job struct {
	Slug        string   `json:"slug"`
	CompanyName string   `json:"company_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remote      bool     `json:"remote"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
	Location    string   `json:"location"`
	CreatedAt   int64    `json:"created_at"`
}

// Fetch follows the "next" links up to the page limit. Pages are identical
// for every query, so repeated queries are served from the response cache.
func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	var listings []listing.Listing

	next := f.opts.APIURL
	for page := 0; page < f.Pages && next != ""; page++ {
		var resp response
		if _, err := f.Client.Get(ctx, sources.Request{Backend: f.Backend(), URL: next, Decode: sources.JSON(&resp)}); err != nil {
			return sources.Outcome(listings, fmt.Errorf("page %d: %w", page+1, err))
		}

		for _, j := range resp.Data {
			if !sources.MatchesQuery(j.Title, q) {
				continue
			}
			if q.Remote && !j.Remote {
				continue
			}
			listings = append(listings, f.Stamp(j.toListing(), listing.OriginAPI))
		}

		next = resp.Links.Next
	}

	return sources.Outcome(listings, nil)
}

func (j job) toListing() listing.Listing {
	l := listing.Listing{
		ID:           j.Slug,
		Title:        strings.TrimSpace(j.Title),
		Organization: strings.TrimSpace(j.CompanyName),
		Location:     strings.TrimSpace(j.Location),
		Description:  sources.PlainText(j.Description),
		URL:          j.URL,
	}
	if len(j.Tags) > 0 {
		l.Description = strings.TrimSpace(l.Description + " Tags: " + strings.Join(j.Tags, ", "))
	}
	if j.CreatedAt > 0 {
		t := time.Unix(j.CreatedAt, 0).UTC()
		l.PostedAt = &t
	}
	if j.Remote {
		l.Arrangement = listing.ArrangementRemote
	}
	return l
}
