package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/results"
)

type countingRunner struct {
	calls  int
	titles []string
}

func (r *countingRunner) Run(_ context.Context, prof *profile.Profile) (*pipeline.Report, error) {
	r.calls++
	r.titles = prof.TargetTitles
	return &pipeline.Report{RunID: "tick", Items: &results.Items{}}, nil
}

func TestTickSkipsUnreadableProfile(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &countingRunner{}

	tick(context.Background(), r, filepath.Join(t.TempDir(), "missing.json"), zap.New(core))

	assert.Zero(t, r.calls)
	require.Equal(t, 1, logs.FilterMessage("skipping scheduled run").Len())
}

func TestTickRereadsProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	r := &countingRunner{}

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 3, "target_titles": ["SRE"]}`), 0o600))
	tick(context.Background(), r, path, zap.NewNop())

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 3, "target_titles": ["Go Developer"]}`), 0o600))
	tick(context.Background(), r, path, zap.NewNop())

	assert.Equal(t, 2, r.calls)
	assert.Equal(t, []string{"Go Developer"}, r.titles)
}
