// Package lever reads a company's public Lever postings.
package lever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind   = "lever"
	apiURL = "https://api.lever.co/v0/postings"
)

func init() {
	sources.Register(Kind, Kind, New)
}

type Options struct {
	Company      string `mapstructure:"company"`
	Organization string `mapstructure:"organization"`
	APIURL       string `mapstructure:"api_url"`
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
	if opts.Company = strings.TrimSpace(opts.Company); opts.Company == "" {
		return nil, fmt.Errorf("lever: company is required")
	}
	if opts.Organization == "" {
		opts.Organization = opts.Company
	}
	if opts.APIURL == "" {
		opts.APIURL = apiURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts}, nil
}

type posting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	DescriptionPlain string `json:"descriptionPlain"`
	AdditionalPlain  string `json:"additionalPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"salaryRange"`
}

func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	endpoint := fmt.Sprintf("%s/%s?mode=json", f.opts.APIURL, f.opts.Company)

	var postings []posting
	if _, err := f.Client.Get(ctx, sources.Request{Backend: f.Backend(), URL: endpoint, Decode: sources.JSON(&postings)}); err != nil {
		return sources.Outcome(nil, fmt.Errorf("postings of %s: %w", f.opts.Company, err))
	}

	var listings []listing.Listing
	for _, p := range postings {
		if !sources.MatchesQuery(p.Text, q) {
			continue
		}
		l := f.Stamp(p.toListing(f.opts.Organization), listing.OriginDirect)
		if q.Remote && l.Arrangement != listing.ArrangementRemote {
			continue
		}
		listings = append(listings, l)
	}

	return sources.Outcome(listings, nil)
}

func (p posting) toListing(organization string) listing.Listing {
	l := listing.Listing{
		ID:           p.ID,
		Title:        strings.TrimSpace(p.Text),
		Organization: organization,
		Location:     strings.TrimSpace(p.Categories.Location),
		Description:  strings.TrimSpace(p.DescriptionPlain + " " + p.AdditionalPlain),
		URL:          p.HostedURL,
	}

	switch p.WorkplaceType {
	case "remote":
		l.Arrangement = listing.ArrangementRemote
	case "hybrid":
		l.Arrangement = listing.ArrangementHybrid
	case "on-site", "onsite":
		l.Arrangement = listing.ArrangementOnsite
	}

	if p.CreatedAt > 0 {
		t := time.UnixMilli(p.CreatedAt).UTC()
		l.PostedAt = &t
	}

	if p.SalaryRange != nil && (p.SalaryRange.Min > 0 || p.SalaryRange.Max > 0) {
		l.Compensation = strings.TrimSpace(fmt.Sprintf("%.0f-%.0f %s", p.SalaryRange.Min, p.SalaryRange.Max, p.SalaryRange.Currency))
	}

	return l
}
