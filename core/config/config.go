// Package config reads engine and simulation descriptions from TOML or YAML
// and builds the corresponding engine, controller and simulator.
package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a configuration document.
type Format int

const (
	TOML Format = iota
	YAML
)

func (f Format) String() string {
	switch f {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatOf derives the format from a file name; anything that is not .yaml or
// .yml is read as TOML.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return TOML
	}
}

type File struct {
	Engine     Engine      `toml:"engine" yaml:"engine"`
	Simulation *Simulation `toml:"simulation,omitempty" yaml:"simulation,omitempty"`
}

type Engine struct {
	Implication     string     `toml:"implication,omitempty" yaml:"implication,omitempty" validate:"omitempty,oneof=mamdani larsen"`
	Defuzzification string     `toml:"defuzzification,omitempty" yaml:"defuzzification,omitempty" validate:"omitempty,oneof=centroid"`
	Fallback        string     `toml:"fallback,omitempty" yaml:"fallback,omitempty" validate:"omitempty,oneof=hold value"`
	FallbackValue   float64    `toml:"fallback_value,omitempty" yaml:"fallback_value,omitempty"`
	Inputs          []Variable `toml:"inputs" yaml:"inputs" validate:"required,min=1,max=2,dive"`
	Output          Variable   `toml:"output" yaml:"output"`
	Rules           []Rule     `toml:"rules" yaml:"rules" validate:"required,min=1,dive"`
}

type Variable struct {
	Name  string  `toml:"name" yaml:"name" validate:"required"`
	Min   float64 `toml:"min" yaml:"min"`
	Max   float64 `toml:"max" yaml:"max" validate:"gtfield=Min"`
	Step  float64 `toml:"step" yaml:"step" validate:"gt=0"`
	Terms []Term  `toml:"terms" yaml:"terms" validate:"required,min=1,dive"`
}

type Term struct {
	Name   string    `toml:"name" yaml:"name" validate:"required"`
	Shape  string    `toml:"shape" yaml:"shape" validate:"required,oneof=triangle trapezoid"`
	Points []float64 `toml:"points" yaml:"points" validate:"required,min=3,max=4"`
}

type Clause struct {
	Variable string `toml:"variable" yaml:"variable" validate:"required"`
	Term     string `toml:"term" yaml:"term" validate:"required"`
}

type Rule struct {
	If         []Clause `toml:"if" yaml:"if" validate:"required,min=1,dive"`
	Then       Clause   `toml:"then" yaml:"then"`
	Combinator string   `toml:"combinator,omitempty" yaml:"combinator,omitempty" validate:"omitempty,oneof=min product"`
	// Weight defaults to 1.
	Weight *float64 `toml:"weight,omitempty" yaml:"weight,omitempty" validate:"omitempty,gte=0"`
}

type Simulation struct {
	Dt       float64 `toml:"dt" yaml:"dt" validate:"gt=0"`
	Steps    int     `toml:"steps" yaml:"steps" validate:"gt=0"`
	Setpoint float64 `toml:"setpoint" yaml:"setpoint"`
	Output   string  `toml:"output,omitempty" yaml:"output,omitempty" validate:"omitempty,oneof=speed acceleration"`
	Delta    string  `toml:"delta,omitempty" yaml:"delta,omitempty" validate:"omitempty,oneof=error_rate relative_velocity step_change"`
	Input    string  `toml:"input,omitempty" yaml:"input,omitempty" validate:"omitempty,oneof=error distance abs_distance"`

	// ErrorInput and DeltaInput name the engine input variables fed with the
	// error (or distance) and the delta. See sim.Config for the defaults.
	ErrorInput string `toml:"error_input,omitempty" yaml:"error_input,omitempty"`
	DeltaInput string `toml:"delta_input,omitempty" yaml:"delta_input,omitempty"`

	// OutputMin and OutputMax default to the output universe bounds.
	OutputMin   *float64 `toml:"output_min,omitempty" yaml:"output_min,omitempty"`
	OutputMax   *float64 `toml:"output_max,omitempty" yaml:"output_max,omitempty"`
	SpeedMin    *float64 `toml:"speed_min,omitempty" yaml:"speed_min,omitempty"`
	SpeedMax    *float64 `toml:"speed_max,omitempty" yaml:"speed_max,omitempty"`
	MaxAbsError float64  `toml:"max_abs_error,omitempty" yaml:"max_abs_error,omitempty" validate:"gte=0"`

	Leader   Leader    `toml:"leader" yaml:"leader"`
	Follower Follower  `toml:"follower" yaml:"follower"`
	Integral *Integral `toml:"integral,omitempty" yaml:"integral,omitempty"`
}

type Leader struct {
	Position float64   `toml:"position" yaml:"position"`
	Velocity float64   `toml:"velocity" yaml:"velocity"`
	Segments []Segment `toml:"segments,omitempty" yaml:"segments,omitempty" validate:"dive"`
}

type Segment struct {
	At       float64 `toml:"at" yaml:"at" validate:"gte=0"`
	Velocity float64 `toml:"velocity" yaml:"velocity"`
}

type Follower struct {
	Position float64 `toml:"position" yaml:"position"`
	Velocity float64 `toml:"velocity" yaml:"velocity"`
}

type Integral struct {
	Ki  float64 `toml:"ki" yaml:"ki"`
	Min float64 `toml:"min" yaml:"min" validate:"lte=0"`
	Max float64 `toml:"max" yaml:"max" validate:"gte=0,gtfield=Min"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

//go:embed presets/*.toml
var presets embed.FS

// Parse decodes and validates a configuration document. Unknown fields are
// rejected.
func Parse(raw []byte, format Format) (*File, error) {
	var f File
	switch format {
	case TOML:
		err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML configuration: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err := dec.Decode(&f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown configuration format %v", format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads the configuration file at name.
func Load(name string) (*File, error) {
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	f, err := Parse(raw, FormatOf(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// Preset returns one of the built-in configurations.
func Preset(name string) (*File, error) {
	raw, err := presets.ReadFile(path.Join("presets", name+".toml"))
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	f, err := Parse(raw, TOML)
	if err != nil {
		return nil, fmt.Errorf("preset %q: %w", name, err)
	}
	return f, nil
}

// Presets lists the built-in configuration names.
func Presets() []string {
	es, err := presets.ReadDir("presets")
	if err != nil {
		panic("embedded presets missing")
	}
	var names []string
	for _, e := range es {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	slices.Sort(names)
	return names
}

// Validate checks the structural constraints expressed in the field tags.
// Semantic checks (knot order, rule references) happen when the engine is
// built.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, e := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

// ErrInvalid is wrapped by structural validation failures.
var ErrInvalid = errors.New("invalid configuration")
