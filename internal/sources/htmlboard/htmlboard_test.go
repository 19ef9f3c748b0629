package htmlboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

const boardPage = `<html><body>
<ul class="jobs">
  <li class="job" data-id="j-1">
    <a class="title" href="/jobs/1">Senior Go Engineer</a>
    <span class="company">Acme, Inc.</span>
    <span class="location">Remote (EU)</span>
    <span class="salary">€70k – €90k</span>
    <time datetime="2024-05-01">May 1</time>
    <p class="summary">Build   distributed systems</p>
  </li>
  <li class="job">
    <a class="title" href="https://other.example/jobs/2">Go Developer</a>
    <span class="company">Hooli</span>
    <span class="location">Berlin</span>
  </li>
  <li class="job"><span class="company">No title</span></li>
</ul>
</body></html>`

func boardOptions(srvURL string) map[string]any {
	return map[string]any{
		"url":   srvURL + "/search?q={query}&p={page}",
		"delay": "0s",
		"selectors": map[string]any{
			"item":         "li.job",
			"title":        "a.title",
			"organization": ".company",
			"location":     ".location",
			"link":         "a.title",
			"description":  ".summary",
			"date":         "time",
			"compensation": ".salary",
			"id_attr":      "data-id",
		},
	}
}

func TestFetch(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go engineer", r.URL.Query().Get("q"))
		pages = append(pages, r.URL.Query().Get("p"))
		if r.URL.Query().Get("p") == "1" {
			_, _ = w.Write([]byte(boardPage))
			return
		}
		_, _ = w.Write([]byte(`<html><body><ul class="jobs"></ul></body></html>`))
	}))
	defer srv.Close()

	f, err := New(sources.Config{Name: "board", Backend: "board", Options: boardOptions(srv.URL)},
		sources.Deps{Client: sources.NewClient(nil, nil, nil, ""), MaxPages: 3})
	require.NoError(t, err)

	res, err := f.Fetch(context.Background(), sources.Query{Text: "go engineer"})
	require.NoError(t, err)
	require.Len(t, res.Listings, 2)
	assert.Equal(t, []string{"1", "2"}, pages)

	first := res.Listings[0]
	assert.Equal(t, "j-1", first.ID)
	assert.Equal(t, "Senior Go Engineer", first.Title)
	assert.Equal(t, "Acme, Inc.", first.Organization)
	assert.Equal(t, srv.URL+"/jobs/1", first.URL)
	assert.Equal(t, "Build distributed systems", first.Description)
	assert.Equal(t, listing.ArrangementRemote, first.Arrangement)
	assert.Equal(t, listing.OriginScraped, first.Origin)
	assert.Equal(t, listing.ConfidenceMedium, first.Confidence)
	require.NotNil(t, first.PostedAt)

	lo, hi, ok := first.CompensationRange()
	require.True(t, ok)
	assert.Equal(t, 70000.0, lo)
	assert.Equal(t, 90000.0, hi)

	second := res.Listings[1]
	assert.Equal(t, "https://other.example/jobs/2", second.ID)
	assert.Nil(t, second.PostedAt)
}

func TestNewValidatesSelectors(t *testing.T) {
	_, err := New(sources.Config{Name: "board", Options: map[string]any{"url": "https://example.com"}}, sources.Deps{})
	require.Error(t, err)

	_, err = New(sources.Config{Name: "board", Options: map[string]any{
		"url":       "https://example.com",
		"selectors": map[string]any{"item": "li", "title": "a"},
	}}, sources.Deps{})
	require.Error(t, err)
}
