package adzuna

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/ratelimit"
	"github.com/spigell/jobscout/internal/sources"
)

const page = `{"count": 1, "results": [{
	"id": "4242",
	"title": "<strong>Golang</strong> Engineer",
	"description": "Kubernetes and Postgres",
	"company": {"display_name": "Acme Ltd"},
	"location": {"display_name": "London, UK"},
	"salary_min": 60000,
	"salary_max": 80000,
	"redirect_url": "https://adzuna.example/4242",
	"created": "2024-05-01T09:00:00Z"
}]}`

func TestFetch(t *testing.T) {
	t.Setenv(AppIDEnv, "id")
	t.Setenv(AppKeyEnv, "key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gb/search/1", r.URL.Path)
		assert.Equal(t, "id", r.URL.Query().Get("app_id"))
		assert.Equal(t, "golang", r.URL.Query().Get("what"))
		assert.Equal(t, "London", r.URL.Query().Get("where"))
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f, err := New(sources.Config{Name: "adzuna-gb", Backend: Kind, Options: map[string]any{"country": "GB", "api_url": srv.URL}},
		sources.Deps{Client: sources.NewClient(nil, nil, nil, ""), MaxPages: 3})
	require.NoError(t, err)

	res, err := f.Fetch(context.Background(), sources.Query{Text: "golang", Location: "London"})
	require.NoError(t, err)
	require.Equal(t, sources.StatusSucceeded, res.Status)
	require.Len(t, res.Listings, 1)

	l := res.Listings[0]
	assert.Equal(t, "4242", l.ID)
	assert.Equal(t, "Golang Engineer", l.Title)
	assert.Equal(t, "Acme Ltd", l.Organization)
	assert.Equal(t, "60000-80000", l.Compensation)
	assert.Equal(t, listing.OriginAPI, l.Origin)
	assert.Equal(t, "adzuna-gb", l.Source)
}

func TestMissingCredentialsDisableSource(t *testing.T) {
	t.Setenv(AppIDEnv, "")
	t.Setenv(AppKeyEnv, "")

	_, err := New(sources.Config{Name: "adzuna-gb", Options: map[string]any{"country": "gb"}}, sources.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), AppIDEnv)
}

func TestCountriesShareBackendQuota(t *testing.T) {
	t.Setenv(AppIDEnv, "id")
	t.Setenv(AppKeyEnv, "key")

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	limiter := ratelimit.New(nil, map[string]ratelimit.Rule{Kind: {Limit: 1, Period: time.Hour}}, zap.NewNop())
	deps := sources.Deps{Client: sources.NewClient(nil, limiter, nil, ""), MaxPages: 1}

	fetchers, errs := sources.Build([]sources.Config{
		{Name: "adzuna-gb", Type: Kind, Options: map[string]any{"country": "gb", "api_url": srv.URL}},
		{Name: "adzuna-de", Type: Kind, Options: map[string]any{"country": "de", "api_url": srv.URL}},
	}, deps)
	require.Empty(t, errs)
	require.Len(t, fetchers, 2)

	statuses := map[sources.Status]int{}
	for _, f := range fetchers {
		assert.Equal(t, Kind, f.Backend())
		res, err := f.Fetch(context.Background(), sources.Query{Text: "go"})
		require.NoError(t, err)
		statuses[res.Status]++
	}

	assert.Equal(t, 1, statuses[sources.StatusSucceeded])
	assert.Equal(t, 1, statuses[sources.StatusRateLimited])
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], "/search/1"))
}
