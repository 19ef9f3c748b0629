// Package headhunter reads vacancies from the HeadHunter (hh.ru) API.
package headhunter

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/secrets"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	Kind   = "headhunter"
	apiURL = "https://api.hh.ru"
	// Max value for search per page.
	perPage = 100
	// TokenEnv holds the OAuth token when no token file is configured.
	TokenEnv = "HH_TOKEN"
	// TokenFileEnv points to a file with the OAuth token.
	TokenFileEnv = "HH_TOKEN_FILE"
)

func init() {
	sources.Register(Kind, Kind, New)
}

// Options are read from the source configuration.
type Options struct {
	APIURL      string   `mapstructure:"api_url"`
	Areas       []int    `mapstructure:"area"`
	Schedules   []string `mapstructure:"schedule"`
	Experience  string   `mapstructure:"experience"`
	SearchField string   `mapstructure:"search_field"`
	OrderBy     string   `mapstructure:"order_by"`
	Employer    uint     `mapstructure:"employer_id"`
	PerPage     int      `mapstructure:"per_page"`
	Period      uint     `mapstructure:"period"`
	TokenFile   string   `mapstructure:"token_file"`
}

type Fetcher struct {
	sources.Base
	opts  Options
	token string
}

// New builds a HeadHunter fetcher. The token is optional; anonymous search
// works with lower limits.
func New(cfg sources.Config, deps sources.Deps) (sources.Fetcher, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}

	if opts.APIURL == "" {
		opts.APIURL = apiURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if opts.PerPage <= 0 || opts.PerPage > perPage {
		opts.PerPage = perPage
	}

	if opts.TokenFile == "" {
		opts.TokenFile = os.Getenv(TokenFileEnv)
	}

	token, err := secrets.Optional(secrets.Source{Name: "headhunter token", File: opts.TokenFile, Env: TokenEnv})
	if err != nil {
		return nil, err
	}

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts, token: token}, nil
}

// ItemResponse is one page of a search.
type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item interface{}

func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	params := f.searchParams(q)

	var listings []listing.Listing
	for page := 0; page < f.Pages; page++ {
		params.Page = page

		response, err := f.getPage(ctx, params)
		if err != nil {
			return sources.Outcome(listings, err)
		}

		vacancies, err := decodeItems(response.Items)
		if err != nil {
			return sources.Outcome(listings, err)
		}

		for _, v := range vacancies {
			listings = append(listings, f.Stamp(v.ToListing(), listing.OriginAPI))
		}

		f.Logger.Debug("got response from HH.ru",
			zap.Int("page", response.Page+1),
			zap.Int("pages", response.Pages),
			zap.Int("found", response.Found),
		)

		if response.Page >= response.Pages-1 {
			break
		}
	}

	return sources.Outcome(listings, nil)
}

func (f *Fetcher) getPage(ctx context.Context, params *SearchParams) (*ItemResponse, error) {
	var response ItemResponse
	req := sources.Request{
		Backend: f.Backend(),
		URL:     fmt.Sprintf("%s%s?%s", f.opts.APIURL, SearchPath, buildParams(params).Encode()),
		Decode:  sources.JSON(&response),
	}
	if f.token != "" {
		req.Headers = map[string]string{"Authorization": "Bearer " + f.token}
	}

	if _, err := f.Client.Get(ctx, req); err != nil {
		return nil, fmt.Errorf("search page %d: %w", params.Page, err)
	}

	return &response, nil
}

func decodeItems(items []Item) ([]*Vacancy, error) {
	var vacancies []*Vacancy

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding vacancies: %w", err)
	}

	return vacancies, nil
}

func (f *Fetcher) searchParams(q sources.Query) *SearchParams {
	params := &SearchParams{
		Text:        q.Text,
		Areas:       f.opts.Areas,
		OrderBy:     f.opts.OrderBy,
		Employer:    f.opts.Employer,
		SearchField: f.opts.SearchField,
		Schedules:   append([]string(nil), f.opts.Schedules...),
		PerPage:     strconv.Itoa(f.opts.PerPage),
		Experience:  f.opts.Experience,
		Period:      f.opts.Period,
	}

	if q.Remote && !contains(params.Schedules, "remote") {
		params.Schedules = append(params.Schedules, "remote")
	}

	return params
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
