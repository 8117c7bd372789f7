package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/bindbridge/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"check", "types", "demo"} {
		assert.Contains(t, out, name)
	}
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "check", "testdata/challenge.hcl")
	require.NoError(t, err)
	assert.Contains(t, out, "ok, 3 types registered (1 shared with earlier modules)")
}

func TestCheck_Conflict(t *testing.T) {
	_, err := execute(t, "check", "testdata/conflict.hcl")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRegistrationConflict)
	assert.Contains(t, err.Error(), "load module second")
}

func TestCheck_NoManifest(t *testing.T) {
	_, err := execute(t, "check")
	assert.ErrorContains(t, err, "no manifest given")
}

func TestCheck_ManifestFromEnv(t *testing.T) {
	t.Setenv("BINDBRIDGE_MANIFEST", "testdata/challenge.hcl")
	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "testdata/challenge.hcl: ok")
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types", "testdata/challenge.hcl")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "WhatsIt")
	assert.Contains(t, out, "reflect:challenge")
	assert.Contains(t, out, "manifest:containers")
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, `("bla", 1)`)
	assert.Contains(t, out, "WhatsIt(pair, 7)")
	assert.Contains(t, out, "a, b, c")
	assert.Regexp(t, `wasm bridge\s+\d+ types, WhatsIt at #\d+, refcount 2\n`, out)
	assert.Regexp(t, `guest cast shared\s+ok\n`, out)
	assert.Regexp(t, `guest cast unique\s+holder_mismatch\n`, out)
}

func TestDemo_WithManifest(t *testing.T) {
	out, err := execute(t, "demo", "testdata/challenge.hcl")
	require.NoError(t, err)
	assert.Contains(t, out, "4 types")
}

func TestDemo_ManifestConflict(t *testing.T) {
	_, err := execute(t, "demo", "testdata/conflict.hcl")
	assert.ErrorIs(t, err, errors.ErrRegistrationConflict)
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "demo")
	assert.ErrorContains(t, err, "log_level")
}
