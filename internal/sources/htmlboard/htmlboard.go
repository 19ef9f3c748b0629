// Package htmlboard scrapes job boards that only publish HTML. Each board is
// described by a URL template and a set of CSS selectors.
package htmlboard

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
	"github.com/spigell/jobscout/internal/utils"
)

const Kind = "htmlboard"

func init() {
	// Scraped boards are their own backend unless configured otherwise.
	sources.Register(Kind, "", New)
}

type Selectors struct {
	Item         string `mapstructure:"item"`
	Title        string `mapstructure:"title"`
	Organization string `mapstructure:"organization"`
	Location     string `mapstructure:"location"`
	Link         string `mapstructure:"link"`
	Description  string `mapstructure:"description"`
	Date         string `mapstructure:"date"`
	Compensation string `mapstructure:"compensation"`
	// IDAttr names an attribute of the item element holding a stable id.
	IDAttr string `mapstructure:"id_attr"`
}

type Options struct {
	// URL may contain {query}, {location} and {page} placeholders.
	URL          string        `mapstructure:"url"`
	Organization string        `mapstructure:"organization"`
	FirstPage    int           `mapstructure:"first_page"`
	Delay        time.Duration `mapstructure:"delay"`
	Selectors    Selectors     `mapstructure:"selectors"`
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

	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("htmlboard: url is required")
	}
	if opts.Selectors.Item == "" || opts.Selectors.Title == "" {
		return nil, fmt.Errorf("htmlboard: item and title selectors are required")
	}
	if opts.Selectors.Organization == "" && opts.Organization == "" {
		return nil, fmt.Errorf("htmlboard: either an organization selector or a fixed organization is required")
	}
	if opts.FirstPage == 0 {
		opts.FirstPage = 1
	}

	return &Fetcher{Base: sources.NewBase(cfg, deps), opts: opts}, nil
}

func (f *Fetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	pages := f.Pages
	if !strings.Contains(f.opts.URL, "{page}") {
		pages = 1
	}

	var listings []listing.Listing
	for i := 0; i < pages; i++ {
		if i > 0 {
			if err := utils.Pause(ctx, f.opts.Delay); err != nil {
				return sources.Outcome(listings, err)
			}
		}

		pageURL := f.pageURL(q, f.opts.FirstPage+i)

		var batch []listing.Listing
		parse := func(body []byte) (err error) {
			batch, err = f.parse(body, pageURL)
			return err
		}
		if _, err := f.Client.Get(ctx, sources.Request{Backend: f.Backend(), URL: pageURL, Decode: parse}); err != nil {
			return sources.Outcome(listings, err)
		}

		f.Logger.Debug("parsed board page", zap.String("url", pageURL), zap.Int("listings", len(batch)))

		if len(batch) == 0 {
			break
		}

		for _, l := range batch {
			if q.Remote && l.Arrangement != listing.ArrangementRemote {
				continue
			}
			listings = append(listings, l)
		}
	}

	return sources.Outcome(listings, nil)
}

func (f *Fetcher) pageURL(q sources.Query, page int) string {
	return strings.NewReplacer(
		"{query}", url.QueryEscape(q.Text),
		"{location}", url.QueryEscape(q.Location),
		"{page}", strconv.Itoa(page),
	).Replace(f.opts.URL)
}

func (f *Fetcher) parse(body []byte, pageURL string) ([]listing.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	sel := f.opts.Selectors
	var listings []listing.Listing

	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		title := text(item, sel.Title)
		if title == "" {
			return
		}

		link := ""
		if sel.Link != "" {
			if href, ok := item.Find(sel.Link).First().Attr("href"); ok {
				link = resolve(base, href)
			}
		}

		id := ""
		if sel.IDAttr != "" {
			id, _ = item.Attr(sel.IDAttr)
		}
		if id == "" {
			id = link
		}
		if id == "" {
			return
		}

		organization := f.opts.Organization
		if sel.Organization != "" {
			if found := text(item, sel.Organization); found != "" {
				organization = found
			}
		}

		l := listing.Listing{
			ID:           strings.TrimSpace(id),
			Title:        title,
			Organization: organization,
			Location:     text(item, sel.Location),
			Compensation: text(item, sel.Compensation),
			Description:  text(item, sel.Description),
			URL:          link,
		}
		if sel.Date != "" {
			date := item.Find(sel.Date).First()
			if dt, ok := date.Attr("datetime"); ok {
				l.PostedAt = listing.ParseTime(dt)
			} else {
				l.PostedAt = listing.ParseTime(date.Text())
			}
		}

		listings = append(listings, f.Stamp(l, listing.OriginScraped))
	})

	return listings, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
