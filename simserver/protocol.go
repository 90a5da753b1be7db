package simserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// Command operations accepted on /sessions/:id/command
const (
	OpStep           = "step"
	OpAddVehicle     = "add"
	OpVehicleIDs     = "ids"
	OpLaneIndex      = "lane"
	OpLanePosition   = "position"
	OpSpeed          = "speed"
	OpMaxSpeed       = "maxspeed"
	OpRoadID         = "road"
	OpLaneCount      = "lanes"
	OpLeader         = "leader"
	OpSetSpeed       = "setspeed"
	OpLaneChangeMode = "lcmode"
	OpChangeLane     = "changelane"
)

type StartRequest struct {
	Scenario        string   `json:"scenario"`
	ConfigPath      string   `json:"config_path"`
	GUI             bool     `json:"gui"`
	CollisionAction string   `json:"collision_action"`
	Extra           []string `json:"extra"`
}

type StartResponse struct {
	ID string `json:"id"`
}

type Command struct {
	Op      string `json:"op"`
	Vehicle string `json:"vehicle,omitempty"`
	Route   string `json:"route,omitempty"`
	Type    string `json:"type,omitempty"`
	Road    string `json:"road,omitempty"`
	Lane    int    `json:"lane,omitempty"`
	Mode    int    `json:"mode,omitempty"`
	// Value is the speed, the look ahead distance or the lane change duration
	Value float64 `json:"value,omitempty"`
}

type Reply struct {
	Int    int          `json:"int,omitempty"`
	Float  float64      `json:"float,omitempty"`
	String string       `json:"string,omitempty"`
	IDs    []string     `json:"ids,omitempty"`
	Leader *sumo.Leader `json:"leader,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// errStatus maps simulator errors onto http status codes, statusErr is the inverse
func errStatus(err error) int {
	switch {
	case errors.Is(err, sumo.ErrUnknownVehicle):
		return http.StatusNotFound
	case errors.Is(err, sumo.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, sumo.ErrNoSession):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func statusErr(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", sumo.ErrUnknownVehicle, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", sumo.ErrRejected, msg)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", sumo.ErrNoSession, msg)
	default:
		return fmt.Errorf("simulator bridge (%d): %s", status, msg)
	}
}
