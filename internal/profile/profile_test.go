package profile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const v1Profile = `{
  "target_titles": ["Backend Engineer", "Platform Engineer"],
  "skills": ["Go", "Kubernetes", "PostgreSQL"],
  "location": "Berlin",
  "remote_ok": true,
  "seniority": "Senior",
  "domains": ["fintech"],
  "min_compensation": 80000,
  "dealbreakers": ["clearance required"],
  "avoid_staffing": true,
  "notes": "kept as is"
}`

func TestDefaultWeightsSumToOne(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), WeightTolerance)
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	w.Skill = 0.5
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.Skill, w.Title = -0.1, 0.6
	assert.Error(t, w.Validate())
}

func TestLoadMigratesV1InPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(v1Profile), 0o600))

	core, logs := observer.New(zapcore.InfoLevel)
	res, err := Load(path, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 1, res.FromVersion)
	assert.True(t, res.Upgraded)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, logs.FilterMessage("profile upgraded").Len())

	p := res.Profile
	assert.Equal(t, CurrentVersion, p.Version)
	assert.Equal(t, []string{"Berlin"}, p.Locations)
	assert.Equal(t, StaffingPenalize, p.Staffing)
	assert.Equal(t, "senior", p.Seniority)
	assert.Equal(t, DefaultWeights(), p.Weights)

	var doc map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, CurrentVersion, doc["version"])
	assert.Equal(t, "kept as is", doc["notes"])
	assert.NotContains(t, doc, "avoid_staffing")
	assert.NotContains(t, doc, "location")
	assert.Contains(t, doc, "weights")

	again, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, again.FromVersion)
	assert.False(t, again.Upgraded)
	assert.Equal(t, p, again.Profile)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(after))
}

func TestInvalidWeightsFallBackToDefaults(t *testing.T) {
	res, err := Parse([]byte(`{
		"version": 3,
		"target_titles": ["SRE"],
		"weights": {"skill": 0.9, "title": 0.9, "seniority": 0, "location": 0, "domain": 0, "response": 0}
	}`))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "invalid scoring weights")
	assert.Equal(t, DefaultWeights(), res.Profile.Weights)
	assert.Equal(t, StaffingNeutral, res.Profile.Staffing)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		check func(t *testing.T, err error)
	}{
		{
			name: "newer version",
			doc:  `{"version": 4, "target_titles": ["SRE"]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrUnsupportedVersion))
			},
		},
		{
			name: "missing titles",
			doc:  `{"version": 3, "skills": ["go"]}`,
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.NotEmpty(t, schemaErr.Errors)
			},
		},
		{
			name: "unknown staffing preference",
			doc:  `{"version": 3, "target_titles": ["SRE"], "staffing": "avoid"}`,
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				assert.True(t, errors.As(err, &schemaErr))
			},
		},
		{
			name: "unknown seniority",
			doc:  `{"version": 3, "target_titles": ["SRE"], "seniority": "wizard"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "invalid profile")
			},
		},
		{
			name: "not json",
			doc:  `version: 3`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decoding profile")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(v1Profile), &doc))

	_, err := Migrate(doc)
	require.NoError(t, err)

	snapshot, err := json.Marshal(doc)
	require.NoError(t, err)

	addWeights(doc)
	splitStaffingAndLocations(doc)
	from, err := Migrate(doc)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, from)

	again, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(snapshot), string(again))
}

func TestV2StaffingFlagFalseIsNeutral(t *testing.T) {
	res, err := Parse([]byte(`{"version": 2, "target_titles": ["SRE"], "avoid_staffing": false, "location": ""}`))
	require.NoError(t, err)
	assert.Equal(t, StaffingNeutral, res.Profile.Staffing)
	assert.Empty(t, res.Profile.Locations)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, DefaultWeights(), res.Profile.Weights)
}
