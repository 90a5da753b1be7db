package roadsim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Road is a single straight edge with parallel lanes, lane 0 is the rightmost
type Road struct {
	ID         string  `yaml:"id"`
	Length     float64 `yaml:"length"`
	Lanes      int     `yaml:"lanes"`
	SpeedLimit float64 `yaml:"speed_limit"`
}

// Route is where vehicles added at runtime depart from
type Route struct {
	ID         string  `yaml:"id"`
	Road       string  `yaml:"road"`
	DepartLane int     `yaml:"depart_lane"`
	DepartPos  float64 `yaml:"depart_pos"`
}

type VehicleType struct {
	ID       string  `yaml:"id"`
	MaxSpeed float64 `yaml:"max_speed"`
	Accel    float64 `yaml:"accel"`
	Decel    float64 `yaml:"decel"`
	Length   float64 `yaml:"length"`
	MinGap   float64 `yaml:"min_gap"`
}

// VehicleSpec is a vehicle of the scenario demand
type VehicleSpec struct {
	ID     string  `yaml:"id"`
	Route  string  `yaml:"route"`
	Type   string  `yaml:"type"`
	Lane   int     `yaml:"lane"`
	Pos    float64 `yaml:"pos"`
	Speed  float64 `yaml:"speed"`
	Depart int     `yaml:"depart"`

	// Stopped vehicles hold speed zero from insertion until a command releases them
	Stopped bool `yaml:"stopped"`
}

type Scenario struct {
	Name     string        `yaml:"name"`
	Road     Road          `yaml:"road"`
	Routes   []Route       `yaml:"routes"`
	Types    []VehicleType `yaml:"vtypes"`
	Vehicles []VehicleSpec `yaml:"vehicles"`
}

// DefaultScenario is a two lane road with stopped obstacles
// alternating between the lanes
func DefaultScenario() *Scenario {
	s := &Scenario{
		Name: "obstacles",
		Road: Road{ID: "E0", Length: 500, Lanes: 2, SpeedLimit: 13.89},
		Routes: []Route{
			{ID: "r_0", Road: "E0", DepartLane: 0, DepartPos: 5},
		},
		Types: []VehicleType{
			{ID: "obstacle", MaxSpeed: 13.89, Accel: 2.6, Decel: 4.5, Length: 5, MinGap: 2.5},
		},
		Vehicles: make([]VehicleSpec, 0),
	}
	positions := []float64{60, 130, 200, 270, 340, 410}
	for i, pos := range positions {
		s.Vehicles = append(s.Vehicles, VehicleSpec{
			ID:      fmt.Sprintf("obs%d", i),
			Route:   "r_0",
			Type:    "obstacle",
			Lane:    i % 2,
			Pos:     pos,
			Stopped: true,
		})
	}
	return s
}

// LoadScenario reads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(bs)
}

func ParseScenario(bs []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(bs, s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func (s *Scenario) Validate() error {
	if s.Road.ID == "" {
		return errors.New("scenario: road id is empty")
	}
	if s.Road.Lanes < 1 {
		return fmt.Errorf("scenario: road %s needs at least one lane", s.Road.ID)
	}
	if s.Road.Length <= 0 {
		return fmt.Errorf("scenario: road %s has non positive length", s.Road.ID)
	}
	types := make(map[string]bool)
	for _, t := range s.Types {
		if t.MaxSpeed <= 0 || t.Length <= 0 {
			return fmt.Errorf("scenario: vehicle type %s needs positive max speed and length", t.ID)
		}
		types[t.ID] = true
	}
	routes := make(map[string]bool)
	for _, r := range s.Routes {
		if r.Road != s.Road.ID {
			return fmt.Errorf("scenario: route %s on unknown road %s", r.ID, r.Road)
		}
		if r.DepartLane < 0 || r.DepartLane >= s.Road.Lanes {
			return fmt.Errorf("scenario: route %s departs on missing lane %d", r.ID, r.DepartLane)
		}
		routes[r.ID] = true
	}
	ids := make(map[string]bool)
	for _, v := range s.Vehicles {
		if ids[v.ID] {
			return fmt.Errorf("scenario: duplicate vehicle %s", v.ID)
		}
		ids[v.ID] = true
		if !routes[v.Route] {
			return fmt.Errorf("scenario: vehicle %s on unknown route %s", v.ID, v.Route)
		}
		if !types[v.Type] {
			return fmt.Errorf("scenario: vehicle %s of unknown type %s", v.ID, v.Type)
		}
		if v.Lane < 0 || v.Lane >= s.Road.Lanes {
			return fmt.Errorf("scenario: vehicle %s on missing lane %d", v.ID, v.Lane)
		}
	}
	return nil
}

func (s *Scenario) route(id string) (Route, bool) {
	for _, r := range s.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

func (s *Scenario) vehicleType(id string) (VehicleType, bool) {
	for _, t := range s.Types {
		if t.ID == id {
			return t, true
		}
	}
	return VehicleType{}, false
}
