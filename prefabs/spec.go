package prefabs

import (
	"errors"
	"fmt"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/pathing"
	"gopkg.in/yaml.v3"
)

const (
	ObjectsFile = "objects.yaml"
	PathingFile = "pathing.yaml"
)

var ErrInvalidObject = errors.New("prefabs: invalid object spec")

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// Decode converts a loosely typed YAML value, such as a level entity's props,
// into T.
func Decode[T any](raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return zero, err
	}
	var out T
	if err := yaml.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

type ObjectsSpec struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectSpec is the ground shape of one object type. Exactly one of Box,
// Radius and Polygon is set.
type ObjectSpec struct {
	Name    string       `yaml:"name"`
	Box     *BoxSpec     `yaml:"box"`
	Radius  float64      `yaml:"radius"`
	Polygon [][2]float64 `yaml:"polygon"`
}

type BoxSpec struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Footprint converts the spec to the shape used by the exclusion builder.
// Boxes are centered on the object origin.
func (s ObjectSpec) Footprint() (pathing.Footprint, error) {
	shapes := 0
	if s.Box != nil {
		shapes++
	}
	if s.Radius != 0 {
		shapes++
	}
	if len(s.Polygon) > 0 {
		shapes++
	}
	if s.Name == "" || shapes != 1 {
		return pathing.Footprint{}, fmt.Errorf("%w: %q needs a name and exactly one shape", ErrInvalidObject, s.Name)
	}

	switch {
	case s.Box != nil:
		if s.Box.Width <= 0 || s.Box.Height <= 0 {
			return pathing.Footprint{}, fmt.Errorf("%w: %q box must have a positive size", ErrInvalidObject, s.Name)
		}
		hw, hh := s.Box.Width/2, s.Box.Height/2
		return pathing.Footprint{Polygon: []cp.Vector{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}}, nil
	case s.Radius != 0:
		if s.Radius < 0 {
			return pathing.Footprint{}, fmt.Errorf("%w: %q radius is negative", ErrInvalidObject, s.Name)
		}
		return pathing.Footprint{Radius: s.Radius}, nil
	default:
		if len(s.Polygon) < 3 {
			return pathing.Footprint{}, fmt.Errorf("%w: %q polygon has fewer than 3 points", ErrInvalidObject, s.Name)
		}
		poly := make([]cp.Vector, len(s.Polygon))
		for i, p := range s.Polygon {
			poly[i] = cp.Vector{X: p[0], Y: p[1]}
		}
		return pathing.Footprint{Polygon: poly}, nil
	}
}

// PathingSpec tunes the pathing systems and the simulation driving them.
type PathingSpec struct {
	ExclusionOffset float64       `yaml:"exclusion_offset"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	Workers         int           `yaml:"workers"`
	TickSeconds     float64       `yaml:"tick_seconds"`
	Agent           AgentSpec     `yaml:"agent"`
}

// AgentSpec holds the defaults for agents that do not set their own.
type AgentSpec struct {
	Speed     float64 `yaml:"speed"`
	Distance  float64 `yaml:"distance"`
	MaxEffort float64 `yaml:"max_effort"`
}

// DefaultPathingSpec is used for values missing from pathing.yaml.
func DefaultPathingSpec() PathingSpec {
	return PathingSpec{
		ExclusionOffset: pathing.ExclusionOffset,
		RetryInterval:   time.Second,
		Workers:         4,
		TickSeconds:     1.0 / 60.0,
		Agent:           AgentSpec{Speed: 10, Distance: 1, MaxEffort: 500},
	}
}

// LoadPathingSpec loads pathing.yaml on top of DefaultPathingSpec.
func LoadPathingSpec() (PathingSpec, error) {
	spec := DefaultPathingSpec()
	data, err := Load(PathingFile)
	if err != nil {
		return spec, fmt.Errorf("prefabs: load %s: %w", PathingFile, err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("prefabs: unmarshal %s: %w", PathingFile, err)
	}
	if spec.ExclusionOffset < 0 || spec.Agent.Distance < 0 || spec.Agent.MaxEffort < spec.Agent.Distance {
		return spec, fmt.Errorf("prefabs: %s: offset, distance and max effort must be ordered and non-negative", PathingFile)
	}
	return spec, nil
}

// FinderConfig maps the spec onto the finder scheduler settings.
func (s PathingSpec) FinderConfig() pathing.FinderConfig {
	return pathing.FinderConfig{Offset: s.ExclusionOffset, RetryInterval: s.RetryInterval}
}

// QueryProps returns the default query for agent path requests.
func (s PathingSpec) QueryProps() pathing.PathQueryProps {
	return pathing.NewPathQueryProps(s.Agent.Distance, s.Agent.MaxEffort)
}
