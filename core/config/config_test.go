package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fuzzy-follow/core/config"
	"example.com/fuzzy-follow/core/control"
	"example.com/fuzzy-follow/core/fuzzy"
	"example.com/fuzzy-follow/core/sim"
)

const minimalTOML = `
[engine]
fallback = "value"
fallback_value = 5.0

[[engine.inputs]]
name = "distance"
min = 0.0
max = 100.0
step = 1.0
terms = [
  { name = "Near", shape = "trapezoid", points = [0.0, 0.0, 20.0, 40.0] },
  { name = "Far", shape = "trapezoid", points = [60.0, 80.0, 100.0, 100.0] },
]

[engine.output]
name = "speed"
min = 0.0
max = 10.0
step = 0.5
terms = [
  { name = "Slow", shape = "triangle", points = [0.0, 0.0, 5.0] },
  { name = "Fast", shape = "triangle", points = [5.0, 10.0, 10.0] },
]

[[engine.rules]]
if = [{ variable = "distance", term = "Near" }]
then = { variable = "speed", term = "Slow" }

[[engine.rules]]
if = [{ variable = "distance", term = "Far" }]
then = { variable = "speed", term = "Fast" }
weight = 0.5
`

const minimalYAML = `
engine:
  fallback: value
  fallback_value: 5
  inputs:
    - name: distance
      min: 0
      max: 100
      step: 1
      terms:
        - {name: Near, shape: trapezoid, points: [0, 0, 20, 40]}
        - {name: Far, shape: trapezoid, points: [60, 80, 100, 100]}
  output:
    name: speed
    min: 0
    max: 10
    step: 0.5
    terms:
      - {name: Slow, shape: triangle, points: [0, 0, 5]}
      - {name: Fast, shape: triangle, points: [5, 10, 10]}
  rules:
    - if: [{variable: distance, term: Near}]
      then: {variable: speed, term: Slow}
    - if: [{variable: distance, term: Far}]
      then: {variable: speed, term: Fast}
      weight: 0.5
`

func TestPresets(t *testing.T) {
	names := config.Presets()
	require.Equal(t, []string{"follow", "original", "single"}, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			f, err := config.Preset(name)
			require.NoError(t, err)
			require.NotNil(t, f.Simulation)
			s, err := f.BuildSimulator(config.SimulatorOptions{})
			require.NoError(t, err)
			assert.Equal(t, sim.Initialized, s.Phase())
		})
	}
}

func TestUnknownPreset(t *testing.T) {
	_, err := config.Preset("nope")
	require.ErrorContains(t, err, "follow, original, single")
}

func TestParseFormatsAgree(t *testing.T) {
	ft, err := config.Parse([]byte(minimalTOML), config.TOML)
	require.NoError(t, err)
	fy, err := config.Parse([]byte(minimalYAML), config.YAML)
	require.NoError(t, err)
	require.Equal(t, ft, fy)

	e, err := ft.BuildEngine()
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumInputs())
	assert.Equal(t, "speed", e.Output().Name())
	assert.Equal(t, 5.0, e.Fallback())
	assert.Equal(t, 0.5, e.RuleBase().Rule(1).Weight)
	assert.Equal(t, 1.0, e.RuleBase().Rule(0).Weight)

	r := e.Infer(50)
	assert.False(t, r.Fired)
	assert.Equal(t, 5.0, r.Value)
}

func TestControllerWithoutSimulation(t *testing.T) {
	f, err := config.Parse([]byte(minimalTOML), config.TOML)
	require.NoError(t, err)
	c, err := f.BuildController(nil)
	require.NoError(t, err)

	// Fallback value 5 is inside the output universe [0, 10].
	out := c.Update(0.1, 0, 50)
	assert.False(t, out.Fired)
	assert.Equal(t, 5.0, out.Control)

	_, err = f.BuildSimulator(config.SimulatorOptions{})
	require.ErrorIs(t, err, sim.ErrConfig)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.toml": minimalTOML,
		"b.yaml": minimalYAML,
		"c.yml":  minimalYAML,
	} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		f, err := config.Load(p)
		require.NoError(t, err, name)
		assert.Equal(t, "distance", f.Engine.Inputs[0].Name)
	}

	_, err := config.Load(filepath.Join(dir, "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want config.Format
	}{
		{"x.toml", config.TOML},
		{"x.yaml", config.YAML},
		{"X.YML", config.YAML},
		{"x", config.TOML},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, config.FormatOf(tt.name), tt.name)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	_, err := config.Parse([]byte(minimalTOML+"\n[extra]\nx = 1\n"), config.TOML)
	require.Error(t, err)

	_, err = config.Parse([]byte(minimalYAML+"\nextra: 1\n"), config.YAML)
	require.Error(t, err)
}

func TestStructuralValidation(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"bad shape", `shape = "triangle", points = [0.0, 0.0, 5.0]`, `shape = "bell", points = [0.0, 0.0, 5.0]`},
		{"zero step", "step = 0.5", "step = 0.0"},
		{"inverted universe", "max = 10.0", "max = -1.0"},
		{"negative weight", "weight = 0.5", "weight = -0.5"},
		{"bad fallback policy", `fallback = "value"`, `fallback = "zero"`},
		{"missing rule term", `then = { variable = "speed", term = "Slow" }`, `then = { variable = "speed" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := replaceOnce(t, minimalTOML, tt.old, tt.new)
			_, err := config.Parse([]byte(raw), config.TOML)
			require.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestSemanticValidation(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"unknown term", `term = "Near" }]`, `term = "Close" }]`},
		{"unknown variable", `if = [{ variable = "distance", term = "Far" }]`, `if = [{ variable = "range", term = "Far" }]`},
		{"knot outside universe", "[5.0, 10.0, 10.0]", "[5.0, 10.0, 12.0]"},
		{"unordered knots", "[0.0, 0.0, 20.0, 40.0]", "[0.0, 30.0, 20.0, 40.0]"},
		{"triangle arity", `shape = "triangle", points = [5.0, 10.0, 10.0]`, `shape = "triangle", points = [5.0, 6.0, 10.0, 10.0]`},
		{"mixed consequent", `then = { variable = "speed", term = "Fast" }`, `then = { variable = "velocity", term = "Fast" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := replaceOnce(t, minimalTOML, tt.old, tt.new)
			f, err := config.Parse([]byte(raw), config.TOML)
			require.NoError(t, err)
			_, err = f.BuildEngine()
			require.ErrorIs(t, err, fuzzy.ErrConfig)
		})
	}
}

func TestSimulationSettings(t *testing.T) {
	f, err := config.Preset("follow")
	require.NoError(t, err)
	s := f.Simulation
	assert.Equal(t, 0.1, s.Dt)
	assert.Equal(t, 500, s.Steps)
	assert.Equal(t, "acceleration", s.Output)
	require.NotNil(t, s.Integral)
	assert.Equal(t, 0.01, s.Integral.Ki)

	s.Delta = "sideways"
	_, err = f.BuildSimulator(config.SimulatorOptions{})
	require.ErrorIs(t, err, sim.ErrConfig)
	require.ErrorIs(t, f.Validate(), config.ErrInvalid)
}

func TestInputRoles(t *testing.T) {
	f, err := config.Preset("original")
	require.NoError(t, err)
	s := f.Simulation
	assert.Equal(t, "abs_distance", s.Input)
	assert.Equal(t, "distance", s.ErrorInput)
	assert.Equal(t, "change", s.DeltaInput)

	s.Input = "signed"
	require.ErrorIs(t, f.Validate(), config.ErrInvalid)
}

func TestOpenSpeedLimit(t *testing.T) {
	f, err := config.Preset("single")
	require.NoError(t, err)
	lo := 0.0
	f.Simulation.SpeedMin = &lo
	s, err := f.BuildSimulator(config.SimulatorOptions{})
	require.NoError(t, err)
	_, err = s.Step()
	require.NoError(t, err)
}

func TestFallbackPolicyDefaultsToHold(t *testing.T) {
	f, err := config.Parse([]byte(replaceOnce(t, minimalTOML, `fallback = "value"`, "")), config.TOML)
	require.NoError(t, err)
	p, err := control.ParseFallbackPolicy(f.Engine.Fallback)
	require.NoError(t, err)
	assert.Equal(t, control.HoldPrevious, p)
}

func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	i := strings.Index(s, old)
	require.GreaterOrEqual(t, i, 0, "%q not found", old)
	return s[:i] + new + s[i+len(old):]
}
