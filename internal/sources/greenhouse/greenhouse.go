// Package greenhouse reads a company's public Greenhouse job board.
package greenhouse

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind   = "greenhouse"
	apiURL = "https://boards-api.greenhouse.io/v1/boards"
)

func init() {
	sources.Register(Kind, Kind, New)
}

type Options struct {
	Board        string `mapstructure:"board"`
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
	if opts.Board = strings.TrimSpace(opts.Board); opts.Board == "" {
		return nil, fmt.Errorf("greenhouse: board is required")
	}
	if opts.Organization == "" {
		opts.Organization = opts.Board
	}
	if opts.APIURL == "" {
		opts.APIURL = apiURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts}, nil
}

type response struct {
	Jobs []job `json:"jobs"`
}

type job struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	UpdatedAt   string `json:"updated_at"`
	AbsoluteURL string `json:"absolute_url"`
	Content     string `json:"content"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
}

// Fetch downloads the whole board and keeps postings matching the query.
func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	endpoint := fmt.Sprintf("%s/%s/jobs?content=true", f.opts.APIURL, f.opts.Board)

	var resp response
	if _, err := f.Client.Get(ctx, sources.Request{Backend: f.Backend(), URL: endpoint, Decode: sources.JSON(&resp)}); err != nil {
		return sources.Outcome(nil, fmt.Errorf("board %s: %w", f.opts.Board, err))
	}

	var listings []listing.Listing
	for _, j := range resp.Jobs {
		if !sources.MatchesQuery(j.Title, q) {
			continue
		}
		l := f.Stamp(j.toListing(f.opts.Organization), listing.OriginDirect)
		if q.Remote && l.Arrangement != listing.ArrangementRemote {
			continue
		}
		listings = append(listings, l)
	}

	return sources.Outcome(listings, nil)
}

func (j job) toListing(organization string) listing.Listing {
	// Board content comes HTML-escaped.
	description := sources.PlainText(html.UnescapeString(j.Content))

	return listing.Listing{
		ID:           strconv.FormatInt(j.ID, 10),
		Title:        strings.TrimSpace(j.Title),
		Organization: organization,
		Location:     strings.TrimSpace(j.Location.Name),
		PostedAt:     listing.ParseTime(j.UpdatedAt),
		Description:  description,
		URL:          j.AbsoluteURL,
	}
}
