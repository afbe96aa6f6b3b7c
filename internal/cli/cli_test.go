package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"recipes/chain.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.NotNil(t, cfg)

	assert.Equal(t, "recipes/chain.hcl", cfg.RecipePath)
	assert.Equal(t, "serial", cfg.RunMode)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 120, cfg.MaxPolls)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.StatusPort)
	assert.Equal(t, "default", cfg.Queue)
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-recipe", "recipes",
		"-mode", "noqsub",
		"-poll-interval", "5s",
		"-max-polls", "10",
		"-log-format", "json",
		"-log-level", "debug",
		"-status-port", "8080",
		"-queue", "long",
		"-walltime", "48:00:00",
		"-nodes", "2",
		"-ppn", "16",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "recipes", cfg.RecipePath)
	assert.Equal(t, "noqsub", cfg.RunMode)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MaxPolls)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.StatusPort)
	assert.Equal(t, "long", cfg.Queue)
	assert.Equal(t, "48:00:00", cfg.Walltime)
	assert.Equal(t, 2, cfg.Nodes)
	assert.Equal(t, 16, cfg.ProcsPerNode)
}

func TestParseNoRecipeShowsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpFlag(t *testing.T) {
	var out bytes.Buffer
	_, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
}

func TestParseInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad mode", args: []string{"-mode", "parallel", "recipes"}},
		{name: "bad log format", args: []string{"-log-format", "xml", "recipes"}},
		{name: "bad log level", args: []string{"-log-level", "shout", "recipes"}},
		{name: "unknown flag", args: []string{"-frobnicate", "recipes"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
