package simserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeu5/sumo-lane-rl/sumo"
)

// ErrUnknownOp is answered with 400 Bad Request
var ErrUnknownOp = errors.New("unknown operation")

// Server exposes the sessions of a launcher over http
type Server struct {
	Addr     string
	ctx      context.Context
	server   *http.Server
	launcher sumo.Launcher
	logger   *log.Logger

	lock     *sync.Mutex
	sessions map[string]sumo.Session
}

func NewServer(ctx context.Context, addr string, launcher sumo.Launcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		Addr:     addr,
		ctx:      ctx,
		launcher: launcher,
		logger:   logger,
		lock:     new(sync.Mutex),
		sessions: make(map[string]sumo.Session),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.POST("/sessions", s.handleStart)
	r.DELETE("/sessions/:id", s.handleClose)
	r.POST("/sessions/:id/command", s.handleCommand)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background until the context is cancelled
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("simulator bridge stopped", "addr", s.Addr, "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
		s.closeAll()
	}()
}

// Sessions is the number of open sessions
func (s *Server) Sessions() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}

func (s *Server) closeAll() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for id, session := range s.sessions {
		session.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) session(id string) (sumo.Session, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *Server) handleStart(c *gin.Context) {
	req := StartRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Reply{Error: "failed to unmarshal request"})
		return
	}
	session, err := s.launcher.Start(c.Request.Context(), sumo.Scenario{
		Name:       req.Scenario,
		ConfigPath: req.ConfigPath,
	}, sumo.Options{
		GUI:             req.GUI,
		CollisionAction: req.CollisionAction,
		Extra:           req.Extra,
	})
	if err != nil {
		s.logger.Warn("failed to start session", "err", err)
		c.JSON(errStatus(err), Reply{Error: err.Error()})
		return
	}
	id := uuid.NewString()
	s.lock.Lock()
	s.sessions[id] = session
	s.lock.Unlock()
	s.logger.Debug("started session", "id", id, "scenario", req.Scenario)
	c.JSON(http.StatusOK, StartResponse{ID: id})
}

func (s *Server) handleClose(c *gin.Context) {
	id := c.Param("id")
	s.lock.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.lock.Unlock()
	if !ok {
		c.JSON(http.StatusGone, Reply{Error: sumo.ErrNoSession.Error()})
		return
	}
	if err := session.Close(); err != nil {
		s.logger.Warn("failed to close session", "id", id, "err", err)
	}
	s.logger.Debug("closed session", "id", id)
	c.JSON(http.StatusOK, Reply{})
}

func (s *Server) handleCommand(c *gin.Context) {
	session, ok := s.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusGone, Reply{Error: sumo.ErrNoSession.Error()})
		return
	}
	cmd := Command{}
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, Reply{Error: "failed to unmarshal request"})
		return
	}
	reply, err := execute(session, cmd)
	if errors.Is(err, ErrUnknownOp) {
		c.JSON(http.StatusBadRequest, Reply{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(errStatus(err), Reply{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func execute(session sumo.Session, cmd Command) (Reply, error) {
	reply := Reply{}
	var err error
	switch cmd.Op {
	case OpStep:
		err = session.Step()
	case OpAddVehicle:
		err = session.AddVehicle(cmd.Vehicle, cmd.Route, cmd.Type)
	case OpVehicleIDs:
		reply.IDs, err = session.VehicleIDs()
		if reply.IDs == nil {
			reply.IDs = []string{}
		}
	case OpLaneIndex:
		reply.Int, err = session.LaneIndex(cmd.Vehicle)
	case OpLanePosition:
		reply.Float, err = session.LanePosition(cmd.Vehicle)
	case OpSpeed:
		reply.Float, err = session.Speed(cmd.Vehicle)
	case OpMaxSpeed:
		reply.Float, err = session.MaxSpeed(cmd.Vehicle)
	case OpRoadID:
		reply.String, err = session.RoadID(cmd.Vehicle)
	case OpLaneCount:
		reply.Int, err = session.LaneCount(cmd.Road)
	case OpLeader:
		var leader sumo.Leader
		var found bool
		leader, found, err = session.Leader(cmd.Vehicle, cmd.Value)
		if found {
			reply.Leader = &leader
		}
	case OpSetSpeed:
		err = session.SetSpeed(cmd.Vehicle, cmd.Value)
	case OpLaneChangeMode:
		err = session.SetLaneChangeMode(cmd.Vehicle, cmd.Mode)
	case OpChangeLane:
		err = session.ChangeLane(cmd.Vehicle, cmd.Lane, cmd.Value)
	default:
		return reply, fmt.Errorf("%w %q", ErrUnknownOp, cmd.Op)
	}
	return reply, err
}
