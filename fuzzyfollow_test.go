package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPresetsCmd(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Equal(t, "follow\noriginal\nsingle\n", out)
}

func TestCheckCmd(t *testing.T) {
	out, err := execute(t, "check", "--preset", "follow", "--preset", "single")
	require.NoError(t, err)
	assert.Contains(t, out, "follow: ok (inputs error, delta, output acceleration, 9 rules, mamdani)")
	assert.Contains(t, out, "single: ok (inputs distance, output speed, 3 rules, mamdani)")
}

func TestCheckCmdReportsErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
engine:
  inputs:
    - name: x
      min: 0
      max: 1
      step: 0.1
      terms: [{name: A, shape: triangle, points: [0, 0.5, 1]}]
  output:
    name: y
    min: 0
    max: 1
    step: 0.1
    terms: [{name: B, shape: triangle, points: [0, 0.5, 1]}]
  rules:
    - if: [{variable: x, term: Missing}]
      then: {variable: y, term: B}
`), 0o644))

	out, err := execute(t, "check", "--config", bad, "--preset", "original")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no term "Missing"`)
	assert.Contains(t, out, "original: ok")
}

func TestCheckCmdBuildsSimulation(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("core", "config", "presets", "follow.toml"))
	require.NoError(t, err)
	src := strings.Replace(string(b), `delta_input = "delta"`, `delta_input = "rate"`, 1)
	require.NotEqual(t, string(b), src)
	bad := filepath.Join(t.TempDir(), "follow.toml")
	require.NoError(t, os.WriteFile(bad, []byte(src), 0o644))

	out, err := execute(t, "check", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, out, `no input variable "rate"`)
	assert.NotContains(t, out, "ok (")
}

func TestInferCmd(t *testing.T) {
	out, err := execute(t, "infer", "--preset", "single", "--input", "distance=50")
	require.NoError(t, err)
	assert.Contains(t, out, "input distance = 50")
	assert.Contains(t, out, "output speed = 50 (dominant rule 1)")

	out, err = execute(t, "infer", "--preset", "original", "--input", "distance=100", "--input", "change=20")
	require.NoError(t, err)
	assert.Contains(t, out, "rule 2 1.0000  IF distance is Far AND change is Fast THEN speed is Medium")
	assert.Contains(t, out, "output speed = 50 (dominant rule 2)")
}

func TestInferCmdErrors(t *testing.T) {
	_, err := execute(t, "infer", "--preset", "single", "--input", "range=5")
	require.ErrorContains(t, err, `unknown input variable "range"`)

	_, err = execute(t, "infer", "--preset", "single", "--input", "distance")
	require.ErrorContains(t, err, "want name=value")

	_, err = execute(t, "infer", "--preset", "single", "--preset", "follow", "--input", "distance=1")
	require.ErrorContains(t, err, "exactly one configuration")
}

func TestSurfaceCmd(t *testing.T) {
	out, err := execute(t, "surface", "--preset", "follow", "--points", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+3*3)
	assert.Equal(t, "error,delta,acceleration,fired", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "-30,-10,"))
	assert.True(t, strings.HasPrefix(lines[5], "0,0,"))
	assert.True(t, strings.HasPrefix(lines[9], "30,10,"))
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run", "--preset", "follow", "--preset", "single", "--steps", "50", "--csv", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "follow run=")
	assert.Contains(t, out, "single run=")
	assert.Contains(t, out, "status=ok steps=50")

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 51)
}

func TestRunCmdNeedsConfig(t *testing.T) {
	_, err := execute(t, "run")
	require.ErrorContains(t, err, "no configuration given")

	_, err = execute(t, "run", "--preset", "nope")
	require.ErrorContains(t, err, "unknown preset")
}

func TestParseInputs(t *testing.T) {
	m, err := parseInputs([]string{"a=1", " b =-2.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1, "b": -2.5}, m)

	_, err = parseInputs([]string{"a=x"})
	require.Error(t, err)
}
