package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionListsSourceKinds(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "jobscout version: unknown")
	assert.Contains(t, out.String(), "remotive")
	assert.Contains(t, out.String(), "headhunter")
}
