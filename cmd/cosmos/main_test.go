package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String(), errOut.String()
}

func TestVersionCommand(t *testing.T) {
	out, _ := execute(t, "version")
	assert.Contains(t, out, "cosmos v"+Version+"-"+Release)
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Setenv("COSMOS_COSMOS_TOKEN", "secret-token-value")

	out, errOut := execute(t, "config")
	assert.NotContains(t, out, "secret-token-value")
	assert.Contains(t, out, "secr")
	assert.NotContains(t, errOut, "cosmos.token is required")
}

func TestConfigCommandReportsProblems(t *testing.T) {
	t.Setenv("COSMOS_COSMOS_TOKEN", "")

	_, errOut := execute(t, "config")
	assert.Contains(t, errOut, "cosmos.token is required")
}
