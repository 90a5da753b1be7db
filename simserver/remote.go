package simserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// Remote is a launcher whose sessions live behind a simulator bridge
type Remote struct {
	addr   string
	client *http.Client
}

var _ sumo.Launcher = &Remote{}

// NewRemote for the bridge at addr, either host:port or a full http url
func NewRemote(addr string) *Remote {
	return NewRemoteWithClient(addr, &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 5 * time.Second,
			}).DialContext,
			// no response timeout, a slow tick blocks the caller like a local simulator would
			ExpectContinueTimeout: 1 * time.Second,
		},
	})
}

func NewRemoteWithClient(addr string, client *http.Client) *Remote {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Remote{
		addr:   addr,
		client: client,
	}
}

// do sends the request and decodes the reply into out, non 200 replies become sumo errors
func (r *Remote) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.addr+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", sumo.ErrConnection, err)
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", sumo.ErrConnection, err)
	}

	if resp.StatusCode != http.StatusOK {
		reply := Reply{}
		msg := string(bs)
		if json.Unmarshal(bs, &reply) == nil && reply.Error != "" {
			msg = reply.Error
		}
		return statusErr(resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return fmt.Errorf("decoding bridge reply: %w", err)
	}
	return nil
}

func (r *Remote) Start(ctx context.Context, scenario sumo.Scenario, opts sumo.Options) (sumo.Session, error) {
	resp := StartResponse{}
	err := r.do(ctx, http.MethodPost, "/sessions", StartRequest{
		Scenario:        scenario.Name,
		ConfigPath:      scenario.ConfigPath,
		GUI:             opts.GUI,
		CollisionAction: opts.CollisionAction,
		Extra:           opts.Extra,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &remoteSession{
		remote: r,
		ctx:    ctx,
		id:     resp.ID,
	}, nil
}

type remoteSession struct {
	remote *Remote
	ctx    context.Context
	id     string
	closed bool
}

var _ sumo.Session = &remoteSession{}

func (s *remoteSession) call(cmd Command) (Reply, error) {
	reply := Reply{}
	if s.closed {
		return reply, sumo.ErrNoSession
	}
	err := s.remote.do(s.ctx, http.MethodPost, "/sessions/"+s.id+"/command", cmd, &reply)
	return reply, err
}

func (s *remoteSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	// the bridge may have dropped the session already
	err := s.remote.do(context.Background(), http.MethodDelete, "/sessions/"+s.id, nil, nil)
	if err != nil && !errors.Is(err, sumo.ErrNoSession) {
		return err
	}
	return nil
}

func (s *remoteSession) Step() error {
	_, err := s.call(Command{Op: OpStep})
	return err
}

func (s *remoteSession) AddVehicle(id, routeID, typeID string) error {
	_, err := s.call(Command{Op: OpAddVehicle, Vehicle: id, Route: routeID, Type: typeID})
	return err
}

func (s *remoteSession) VehicleIDs() ([]string, error) {
	reply, err := s.call(Command{Op: OpVehicleIDs})
	if err != nil {
		return nil, err
	}
	if reply.IDs == nil {
		return []string{}, nil
	}
	return reply.IDs, nil
}

func (s *remoteSession) LaneIndex(id string) (int, error) {
	reply, err := s.call(Command{Op: OpLaneIndex, Vehicle: id})
	return reply.Int, err
}

func (s *remoteSession) LanePosition(id string) (float64, error) {
	reply, err := s.call(Command{Op: OpLanePosition, Vehicle: id})
	return reply.Float, err
}

func (s *remoteSession) Speed(id string) (float64, error) {
	reply, err := s.call(Command{Op: OpSpeed, Vehicle: id})
	return reply.Float, err
}

func (s *remoteSession) MaxSpeed(id string) (float64, error) {
	reply, err := s.call(Command{Op: OpMaxSpeed, Vehicle: id})
	return reply.Float, err
}

func (s *remoteSession) RoadID(id string) (string, error) {
	reply, err := s.call(Command{Op: OpRoadID, Vehicle: id})
	return reply.String, err
}

func (s *remoteSession) LaneCount(roadID string) (int, error) {
	reply, err := s.call(Command{Op: OpLaneCount, Road: roadID})
	return reply.Int, err
}

func (s *remoteSession) Leader(id string, dist float64) (sumo.Leader, bool, error) {
	reply, err := s.call(Command{Op: OpLeader, Vehicle: id, Value: dist})
	if err != nil || reply.Leader == nil {
		return sumo.Leader{}, false, err
	}
	return *reply.Leader, true, nil
}

func (s *remoteSession) SetSpeed(id string, speed float64) error {
	_, err := s.call(Command{Op: OpSetSpeed, Vehicle: id, Value: speed})
	return err
}

func (s *remoteSession) SetLaneChangeMode(id string, mode int) error {
	_, err := s.call(Command{Op: OpLaneChangeMode, Vehicle: id, Mode: mode})
	return err
}

func (s *remoteSession) ChangeLane(id string, lane int, duration float64) error {
	_, err := s.call(Command{Op: OpChangeLane, Vehicle: id, Lane: lane, Value: duration})
	return err
}
