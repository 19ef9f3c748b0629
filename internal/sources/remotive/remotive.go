// Package remotive reads remote positions from the Remotive public API.
package remotive

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind   = "remotive"
	apiURL = "https://remotive.com/api/remote-jobs"
)

func init() {
	sources.Register(Kind, Kind, New)
}

type Options struct {
	APIURL   string `mapstructure:"api_url"`
	Category string `mapstructure:"category"`
	Limit    int    `mapstructure:"limit"`
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
	Jobs []job `json:"jobs"`
}

type job struct {
	ID                        int64    `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	Category                  string   `json:"category"`
	JobType                   string   `json:"job_type"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	Description               string   `json:"description"`
	Tags                      []string `json:"tags"`
}

// Fetch issues a single search; the API does not page.
func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	params := url.Values{}
	if q.Text != "" {
		params.Set("search", q.Text)
	}
	if f.opts.Category != "" {
		params.Set("category", f.opts.Category)
	}
	if f.opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.opts.Limit))
	}

	var resp response
	req := sources.Request{Backend: f.Backend(), URL: f.opts.APIURL + "?" + params.Encode(), Decode: sources.JSON(&resp)}
	if _, err := f.Client.Get(ctx, req); err != nil {
		return sources.Outcome(nil, err)
	}

	listings := make([]listing.Listing, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		listings = append(listings, f.Stamp(j.toListing(), listing.OriginAPI))
	}

	return sources.Outcome(listings, nil)
}

func (j job) toListing() listing.Listing {
	description := sources.PlainText(j.Description)
	if len(j.Tags) > 0 {
		description = strings.TrimSpace(description + " Tags: " + strings.Join(j.Tags, ", "))
	}

	return listing.Listing{
		ID:           strconv.FormatInt(j.ID, 10),
		Title:        strings.TrimSpace(j.Title),
		Organization: strings.TrimSpace(j.CompanyName),
		Location:     strings.TrimSpace(j.CandidateRequiredLocation),
		Compensation: strings.TrimSpace(j.Salary),
		PostedAt:     listing.ParseTime(j.PublicationDate),
		Arrangement:  listing.ArrangementRemote,
		Description:  description,
		URL:          j.URL,
	}
}
