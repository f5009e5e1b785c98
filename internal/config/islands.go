// Package config loads island and event definitions from YAML and process
// settings from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/tausaga/internal/major"
	"github.com/talgya/tausaga/internal/parameter"
)

var ErrInvalidConfig = errors.New("config: invalid island configuration")

// File is the decoded island configuration.
type File struct {
	Islands []IslandSpec `yaml:"islands"`
}

type IslandSpec struct {
	Name   string      `yaml:"name"`
	Events []EventSpec `yaml:"events"`
}

type EventSpec struct {
	Name       string      `yaml:"name"`
	Type       string      `yaml:"type"`
	Curve      string      `yaml:"curve,omitempty"`
	Parameters []ParamSpec `yaml:"parameters"`
}

// ParamSpec is one parameter entry. Kind selects which of the other fields
// are required and which units are allowed.
type ParamSpec struct {
	Kind         string            `yaml:"kind"`
	Unit         string            `yaml:"unit"`
	Value        Value             `yaml:"value"`
	Follow       string            `yaml:"follow,omitempty"`
	Distribution *DistributionSpec `yaml:"distribution,omitempty"`
	Growth       *GrowthSpec       `yaml:"growth,omitempty"`
}

type DistributionSpec struct {
	Type  string  `yaml:"type"`
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
}

// GrowthSpec is the growth-rate triple: log(Ne) ranges at the start and end
// of a measured interval, and the interval length in years.
type GrowthSpec struct {
	Min     [2]float64 `yaml:"min"`
	Max     [2]float64 `yaml:"max"`
	Elapsed float64    `yaml:"elapsed"`
}

// Value is a parameter value: absent/null, a scalar constant, a [low, high]
// pair, or the inline growth triple [[lo, hi], [lo, hi], elapsed].
type Value struct {
	Set      bool
	Constant *float64
	Range    *[2]float64
	Growth   *GrowthSpec
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = Value{}
			return nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: value: %w", node.Line, err)
		}
		*v = Value{Set: true, Constant: &f}
		return nil
	case yaml.SequenceNode:
		if len(node.Content) == 3 && node.Content[0].Kind == yaml.SequenceNode {
			var raw struct {
				Min     [2]float64
				Max     [2]float64
				Elapsed float64
			}
			if err := node.Content[0].Decode(&raw.Min); err != nil {
				return fmt.Errorf("line %d: growth min: %w", node.Line, err)
			}
			if err := node.Content[1].Decode(&raw.Max); err != nil {
				return fmt.Errorf("line %d: growth max: %w", node.Line, err)
			}
			if err := node.Content[2].Decode(&raw.Elapsed); err != nil {
				return fmt.Errorf("line %d: growth elapsed: %w", node.Line, err)
			}
			g := GrowthSpec(raw)
			*v = Value{Set: true, Growth: &g}
			return nil
		}
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: value range needs two bounds, got %d", node.Line, len(node.Content))
		}
		var r [2]float64
		if err := node.Decode(&r); err != nil {
			return fmt.Errorf("line %d: value range: %w", node.Line, err)
		}
		*v = Value{Set: true, Range: &r}
		return nil
	}
	return fmt.Errorf("line %d: unsupported value", node.Line)
}

func (v Value) MarshalYAML() (any, error) {
	switch {
	case v.Constant != nil:
		return *v.Constant, nil
	case v.Range != nil:
		return v.Range[:], nil
	case v.Growth != nil:
		return []any{v.Growth.Min[:], v.Growth.Max[:], v.Growth.Elapsed}, nil
	}
	return nil, nil
}

// allowedUnits lists the units each kind may be configured in.
var allowedUnits = map[parameter.Kind][]parameter.Unit{
	parameter.KindYear:             {parameter.UnitYearsAgo, parameter.UnitGenerationsAgo, parameter.UnitCE},
	parameter.KindGrowthRate:       {parameter.UnitRawPerYear},
	parameter.KindPopulationChange: {parameter.UnitRaw, parameter.UnitLogNe},
	parameter.KindCarryCapacity:    {parameter.UnitRaw, parameter.UnitLogNe},
}

// Load reads and validates an island configuration. Multiple YAML documents
// in one file are concatenated.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates configuration bytes.
func Parse(b []byte) (*File, error) {
	out := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	for {
		var doc File
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out.Islands = append(out.Islands, doc.Islands...)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks names and every parameter spec without sampling.
func (f *File) Validate() error {
	if len(f.Islands) == 0 {
		return fmt.Errorf("%w: no islands", ErrInvalidConfig)
	}
	islands := make(map[string]bool, len(f.Islands))
	for _, is := range f.Islands {
		if strings.TrimSpace(is.Name) == "" {
			return fmt.Errorf("%w: island without a name", ErrInvalidConfig)
		}
		if strings.Contains(is.Name, "::") {
			return fmt.Errorf("%w: island name %q contains '::'", ErrInvalidConfig, is.Name)
		}
		if islands[is.Name] {
			return fmt.Errorf("%w: duplicate island %q", ErrInvalidConfig, is.Name)
		}
		islands[is.Name] = true

		events := make(map[string]bool, len(is.Events))
		for _, ev := range is.Events {
			where := is.Name + "::" + ev.Name
			if strings.TrimSpace(ev.Name) == "" {
				return fmt.Errorf("%w: %s: event without a name", ErrInvalidConfig, is.Name)
			}
			if events[ev.Name] {
				return fmt.Errorf("%w: duplicate event %s", ErrInvalidConfig, where)
			}
			events[ev.Name] = true
			if _, err := major.ParseCurve(ev.Curve); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, where, err)
			}
			if _, err := ev.Specs(); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, where, err)
			}
		}
	}
	return nil
}

// Specs converts the event's parameter entries into validated parameter specs.
func (e EventSpec) Specs() ([]parameter.Spec, error) {
	specs := make([]parameter.Spec, 0, len(e.Parameters))
	hasYear := false
	for _, p := range e.Parameters {
		s, err := p.ToSpec()
		if err != nil {
			return nil, err
		}
		if s.Kind == parameter.KindYear {
			hasYear = true
		}
		specs = append(specs, s)
	}
	if !hasYear {
		return nil, major.ErrMissingYear
	}
	return specs, nil
}

// ToSpec converts one entry, enforcing the per-kind rules.
func (p ParamSpec) ToSpec() (parameter.Spec, error) {
	kind := parameter.Kind(p.Kind)
	if !kind.Valid() {
		return parameter.Spec{}, fmt.Errorf("unknown parameter kind %q", p.Kind)
	}
	s := parameter.Spec{Kind: kind, Unit: parameter.Unit(p.Unit), Follow: p.Follow}

	growth := p.Growth
	if p.Value.Growth != nil {
		if growth != nil {
			return s, fmt.Errorf("%s: growth given twice", kind)
		}
		growth = p.Value.Growth
	}
	if growth != nil {
		if kind != parameter.KindGrowthRate {
			return s, fmt.Errorf("%s: growth triple only applies to %s", kind, parameter.KindGrowthRate)
		}
		s.Growth = &parameter.GrowthSample{
			Min:     parameter.Range{Low: growth.Min[0], High: growth.Min[1]},
			Max:     parameter.Range{Low: growth.Max[0], High: growth.Max[1]},
			Elapsed: growth.Elapsed,
		}
		if s.Unit == "" {
			s.Unit = parameter.UnitRawPerYear
		}
	}

	if !unitAllowed(kind, s.Unit) {
		return s, fmt.Errorf("%s: unit %q not allowed", kind, p.Unit)
	}
	if p.Follow != "" {
		if kind != parameter.KindYear {
			return s, fmt.Errorf("%s: only Year may follow another event", kind)
		}
		if island, event, ok := strings.Cut(p.Follow, "::"); !ok || island == "" || event == "" {
			return s, fmt.Errorf("%s: follow %q is not island::event", kind, p.Follow)
		}
	}

	s.Constant = p.Value.Constant
	if p.Value.Range != nil {
		s.Range = &parameter.Range{Low: p.Value.Range[0], High: p.Value.Range[1]}
	}
	if d := p.Distribution; d != nil {
		s.Distribution = &parameter.Distribution{Type: parameter.DistributionType(d.Type), Mu: d.Mu, Sigma: d.Sigma}
		switch s.Distribution.Type {
		case parameter.DistUniform, parameter.DistNormal:
		default:
			return s, fmt.Errorf("%s: unknown distribution %q", kind, d.Type)
		}
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func unitAllowed(kind parameter.Kind, u parameter.Unit) bool {
	for _, a := range allowedUnits[kind] {
		if a == u {
			return true
		}
	}
	return false
}
