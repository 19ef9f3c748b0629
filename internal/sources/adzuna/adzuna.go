// Package adzuna reads job offers from the Adzuna search API. Several
// countries can be configured as separate sources sharing one backend quota.
package adzuna

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/secrets"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind     = "adzuna"
	baseURL  = "https://api.adzuna.com/v1/api/jobs"
	pageSize = 50

	AppIDEnv  = "ADZUNA_APP_ID"
	AppKeyEnv = "ADZUNA_APP_KEY"
)

func init() {
	sources.Register(Kind, Kind, New)
}

type Options struct {
	Country    string `mapstructure:"country"`
	APIURL     string `mapstructure:"api_url"`
	PageSize   int    `mapstructure:"results_per_page"`
	AppIDFile  string `mapstructure:"app_id_file"`
	AppKeyFile string `mapstructure:"app_key_file"`
	MaxDaysOld int    `mapstructure:"max_days_old"`
}

type Fetcher struct {
	sources.Base
	opts   Options
	appID  string
	appKey string
}

// New fails when credentials are missing so the source is reported as
// disabled instead of failing on every run.
func New(cfg sources.Config, deps sources.Deps) (sources.Fetcher, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}

	opts.Country = strings.ToLower(strings.TrimSpace(opts.Country))
	if opts.Country == "" {
		return nil, fmt.Errorf("adzuna: country is required")
	}
	if opts.APIURL == "" {
		opts.APIURL = baseURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if opts.PageSize <= 0 || opts.PageSize > pageSize {
		opts.PageSize = pageSize
	}

	appID, err := secrets.Load(secrets.Source{Name: "adzuna app id", File: opts.AppIDFile, Env: AppIDEnv})
	if err != nil {
		return nil, err
	}
	appKey, err := secrets.Load(secrets.Source{Name: "adzuna app key", File: opts.AppKeyFile, Env: AppKeyEnv})
	if err != nil {
		return nil, err
	}

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts, appID: appID, appKey: appKey}, nil
}

type response struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

type result struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Company      named   `json:"company"`
	Location     named   `json:"location"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
	RedirectURL  string  `json:"redirect_url"`
	Created      string  `json:"created"`
	ContractTime string  `json:"contract_time"`
}

type named struct {
	DisplayName string `json:"display_name"`
}

// Fetch pages through results until a short page or the page limit.
func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	var listings []listing.Listing

	for page := 1; page <= f.Pages; page++ {
		batch, err := f.fetchPage(ctx, q, page)
		if err != nil {
			return sources.Outcome(listings, err)
		}

		for _, r := range batch {
			listings = append(listings, f.Stamp(r.toListing(), listing.OriginAPI))
		}

		if len(batch) < f.opts.PageSize {
			break
		}
	}

	return sources.Outcome(listings, nil)
}

func (f *Fetcher) fetchPage(ctx context.Context, q sources.Query, page int) ([]result, error) {
	params := url.Values{}
	params.Set("app_id", f.appID)
	params.Set("app_key", f.appKey)
	params.Set("results_per_page", strconv.Itoa(f.opts.PageSize))
	params.Set("what", q.Text)
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	if f.opts.MaxDaysOld > 0 {
		params.Set("max_days_old", strconv.Itoa(f.opts.MaxDaysOld))
	}
	params.Set("sort_by", "date")

	endpoint := fmt.Sprintf("%s/%s/search/%d?%s", f.opts.APIURL, f.opts.Country, page, params.Encode())

	var resp response
	if _, err := f.Client.Get(ctx, sources.Request{Backend: f.Backend(), URL: endpoint, Decode: sources.JSON(&resp)}); err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	return resp.Results, nil
}

func (r result) toListing() listing.Listing {
	return listing.Listing{
		ID:           r.ID,
		Title:        sources.PlainText(r.Title),
		Organization: strings.TrimSpace(r.Company.DisplayName),
		Location:     strings.TrimSpace(r.Location.DisplayName),
		Compensation: salary(r.SalaryMin, r.SalaryMax),
		PostedAt:     listing.ParseTime(r.Created),
		Description:  sources.PlainText(r.Description),
		URL:          r.RedirectURL,
	}
}

func salary(lo, hi float64) string {
	switch {
	case lo > 0 && hi > 0 && lo != hi:
		return fmt.Sprintf("%.0f-%.0f", lo, hi)
	case lo > 0:
		return fmt.Sprintf("%.0f", lo)
	case hi > 0:
		return fmt.Sprintf("%.0f", hi)
	default:
		return ""
	}
}
