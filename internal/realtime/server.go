// Package realtime is the room-based publish/subscribe channel drones and
// clients talk to. Each namespace is a bidirectional gRPC stream of
// {event, data} frames; the connection is authenticated once when the stream
// opens and then joins rooms by entity id.
package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"droneSurveyManagement/internal/auth"
	"droneSurveyManagement/internal/logger"
	"droneSurveyManagement/internal/mission"
	"droneSurveyManagement/internal/room"
)

// Inbound event names.
const (
	EventJoinDroneRoom  = "join_droneRoom"
	EventLeaveDroneRoom = "leave_droneRoom"
	EventJoinMission    = "join_mission"
	EventLeaveMission   = "leave_mission"
)

// Options tunes per-connection limits.
type Options struct {
	RateLimit  float64 // inbound frames per second
	RateBurst  int
	SendBuffer int
}

// Server implements RealtimeServer.
type Server struct {
	hub     *Hub
	machine *mission.Machine
	rooms   *room.Addresser
	users   auth.UserLookup
	opts    Options
	log     *slog.Logger
}

// NewServer builds the realtime service on top of the hub and the mission machine.
func NewServer(hub *Hub, machine *mission.Machine, rooms *room.Addresser, users auth.UserLookup, opts Options, log *slog.Logger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Server{hub: hub, machine: machine, rooms: rooms, users: users, opts: opts, log: log.With("component", "realtime")}
}

func (s *Server) Drone(stream grpc.ServerStream) error {
	return s.serve(stream, room.NamespaceDrone)
}

func (s *Server) Mission(stream grpc.ServerStream) error {
	return s.serve(stream, room.NamespaceMission)
}

// serve runs one connection: a writer goroutine drains the send queue while
// this goroutine reads frames and handles them in arrival order.
func (s *Server) serve(stream grpc.ServerStream, ns room.Namespace) error {
	ctx := stream.Context()
	p, err := auth.RequireKnownOperator(ctx, s.users)
	if err != nil {
		return err
	}

	c := newConn(uuid.NewString(), s.opts.SendBuffer)
	ctx = logger.WithConnID(ctx, c.id)
	log := logger.FromContext(ctx, s.log).With("namespace", ns, "subject", p.Subject, "kind", p.Kind)
	log.Info("client connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case f := <-c.out:
				if err := stream.SendMsg(f); err != nil {
					log.Debug("send failed", "err", err)
					c.close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()
	defer func() {
		c.close()
		s.hub.Drop(c)
		wg.Wait()
		log.Info("client disconnected")
	}()

	limiter := rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	// In-flight store writes finish even if the client goes away.
	handlerCtx := context.WithoutCancel(ctx)
	for {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		event, data := DecodeFrame(in)
		if !limiter.Allow() {
			log.Warn("rate limit exceeded; frame dropped", "event", event)
			continue
		}
		if err := s.dispatch(handlerCtx, c, p, ns, event, data); err != nil {
			log.Warn("event dropped", "event", event, "err", err)
		}
	}
}

var errForeignDrone = errors.New("drone principals may only speak for themselves")

func (s *Server) dispatch(ctx context.Context, c *Conn, p *auth.Principal, ns room.Namespace, event string, data any) error {
	if ns == room.NamespaceDrone {
		return s.dispatchDrone(ctx, c, p, event, data)
	}
	return s.dispatchMission(ctx, c, event, data)
}

func (s *Server) dispatchDrone(ctx context.Context, c *Conn, p *auth.Principal, event string, data any) error {
	switch event {
	case EventJoinDroneRoom, EventLeaveDroneRoom:
		id := entityID(data, "droneId")
		if id == "" {
			return mission.ErrInvalidPayload
		}
		if event == EventJoinDroneRoom {
			s.hub.Join(s.rooms.Drone(id), c)
		} else {
			s.hub.Leave(s.rooms.Drone(id), c)
		}
		return nil
	case mission.EventDroneUpdate:
		var u mission.DroneUpdate
		if err := decodeInto(data, &u); err != nil {
			return err
		}
		if err := ownDrone(p, u.DroneID); err != nil {
			return err
		}
		return s.machine.HandleDroneUpdate(ctx, u)
	case mission.EventDroneCoordinate:
		var dc mission.DroneCoordinate
		if err := decodeInto(data, &dc); err != nil {
			return err
		}
		if err := ownDrone(p, dc.DroneID); err != nil {
			return err
		}
		return s.machine.RelayCoordinate(dc)
	case mission.EventProgressUpdate:
		var pu mission.ProgressUpdate
		if err := decodeInto(data, &pu); err != nil {
			return err
		}
		if pu.DroneID != "" {
			if err := ownDrone(p, pu.DroneID); err != nil {
				return err
			}
		}
		return s.machine.HandleProgress(ctx, pu)
	case mission.EventMissionAction:
		var req mission.ActionRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		if req.DroneID != "" {
			if err := ownDrone(p, req.DroneID); err != nil {
				return err
			}
		}
		_, err := s.machine.HandleAction(ctx, req, mission.ScopeDrone)
		return err
	}
	return errUnknownEvent(event)
}

func (s *Server) dispatchMission(ctx context.Context, c *Conn, event string, data any) error {
	switch event {
	case EventJoinMission, EventLeaveMission:
		id := entityID(data, "missionId")
		if id == "" {
			return mission.ErrInvalidPayload
		}
		if event == EventJoinMission {
			s.hub.Join(s.rooms.Mission(id), c)
		} else {
			s.hub.Leave(s.rooms.Mission(id), c)
		}
		return nil
	case mission.EventFlightUpdate:
		m, ok := data.(map[string]any)
		if !ok {
			return mission.ErrInvalidPayload
		}
		return s.machine.RelayFlight(m)
	case mission.EventProgressUpdate:
		var mp mission.MissionProgress
		if err := decodeInto(data, &mp); err != nil {
			return err
		}
		return s.machine.HandleMissionProgress(ctx, mp)
	case mission.EventStatusUpdate:
		var su mission.StatusUpdate
		if err := decodeInto(data, &su); err != nil {
			return err
		}
		return s.machine.HandleStatusUpdate(ctx, su)
	case mission.EventMissionAction:
		var req mission.ActionRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		_, err := s.machine.HandleAction(ctx, req, mission.ScopeMission)
		return err
	}
	return errUnknownEvent(event)
}

func ownDrone(p *auth.Principal, droneID string) error {
	if p.Kind == auth.KindDrone && droneID != p.Subject {
		return errForeignDrone
	}
	return nil
}

type errUnknownEvent string

func (e errUnknownEvent) Error() string { return "unknown event " + string(e) }

var _ RealtimeServer = (*Server)(nil)
