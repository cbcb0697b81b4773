// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/middleware"
	"github.com/jason-s-yu/stranded/internal/resolution"
	"github.com/jason-s-yu/stranded/internal/room"
)

// Subprotocol is the websocket subprotocol every client must request.
const Subprotocol = "stranded"

// Keepalive and write deadlines for every socket.
const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// Inbound event names.
const (
	msgJoinRoom     = "join-room"
	msgToggleReady  = "toggle-ready"
	msgAdvanceDay   = "advance-day"
	msgLeaveRoom    = "leave-room"
	msgSubmitAction = "submit-action"
	msgResolveDay   = "resolve-day"
)

// RoomServer holds everything the gateway needs to serve rooms.
type RoomServer struct {
	Store    *room.RoomStore      // live rooms by code
	Pipeline *resolution.Pipeline // prologue and day resolution
	Logger   *logrus.Logger

	// ctx bounds background work started by the gateway (prologues and
	// resolutions). It outlives any single websocket.
	ctx context.Context
}

// NewRoomServer wires the gateway. ctx should live as long as the process.
func NewRoomServer(ctx context.Context, store *room.RoomStore, pipeline *resolution.Pipeline, logger *logrus.Logger) *RoomServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoomServer{Store: store, Pipeline: pipeline, Logger: logger, ctx: ctx}
}

// inboundMessage is the union of every client -> server frame.
type inboundMessage struct {
	Type       string      `json:"type"`
	RoomCode   string      `json:"roomCode"`
	PlayerName string      `json:"playerName"`
	Pronouns   string      `json:"pronouns"`
	MBTIType   string      `json:"mbtiType"`
	Stats      *room.Stats `json:"stats"`
	IsScreen   bool        `json:"isScreen"`
	Action     string      `json:"action"`
}

// session is the per-connection binding to at most one room. Only the read
// pump touches it.
type session struct {
	conn *room.Connection
	code string
	room *room.Room
}

// bound reports whether the session is attached to a room.
func (s *session) bound() bool { return s.room != nil }

// unbind forgets the room without touching the store.
func (s *session) unbind() { s.room, s.code = nil, "" }

// RoomWSHandler upgrades the request and runs the connection until it closes.
// A disconnect always removes the connection from its room.
func (s *RoomServer) RoomWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the stranded subprotocol")
			return
		}

		// The connection starts unbound; join-room attaches it to a room.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sess := &session{conn: room.NewConnection(false, cancel, s.Logger)}
		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

		// Start write pump in a goroutine
		go s.writePump(ctx, c, sess.conn)

		// Read pump blocks until the socket closes or the context is cancelled
		readErr := s.readPump(ctx, c, sess)

		// ---- Cleanup after readPump exits ----
		if sess.bound() {
			s.leave(sess)
		}
		middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump decodes inbound frames and dispatches them in arrival order.
func (s *RoomServer) readPump(ctx context.Context, c *websocket.Conn, sess *session) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.Logger.Warnf("Connection %s: ignoring non-text message type %d", sess.conn.ID, typ)
			continue
		}

		// Decode and dispatch; rejections go back to this connection only.
		var in inboundMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			sess.conn.WriteError(errors.InvalidArgument("invalid JSON format"))
			continue
		}
		if err := s.handleMessage(sess, in); err != nil {
			s.Logger.WithFields(logrus.Fields{
				"conn": sess.conn.ID,
				"room": sess.code,
				"type": in.Type,
			}).Warnf("rejected: %v", err)
			sess.conn.WriteError(err)
		}
	}
}

// handleMessage maps one inbound event onto the room state machine.
func (s *RoomServer) handleMessage(sess *session, in inboundMessage) error {
	if in.Type == msgJoinRoom {
		return s.handleJoin(sess, in)
	}
	if !sess.bound() {
		return errors.FailedPreconditionf("%q requires joining a room first", in.Type)
	}

	r := sess.room
	if r.Closed() {
		sess.unbind()
		return errors.FailedPreconditionf("room %s has closed", r.Code)
	}

	switch in.Type {
	case msgToggleReady:
		started, err := r.ToggleReady(sess.conn.ID)
		if err != nil {
			return err
		}
		if started {
			// The prologue may take several generation attempts.
			go s.startGame(r)
		}
	case msgAdvanceDay:
		return r.AdvanceDay()
	case msgSubmitAction:
		allIn, err := r.SubmitAction(sess.conn.ID, in.Action)
		if err != nil {
			return err
		}
		if allIn {
			// Last action in; resolve off the read loop.
			go s.resolveWhenReady(r)
		}
	case msgResolveDay:
		go s.resolveDay(r, sess.conn)
	case msgLeaveRoom:
		s.leave(sess)
	default:
		return errors.InvalidArgumentf("unknown message type %q", in.Type)
	}
	return nil
}

// handleJoin binds the session to a room, as a screen or as a player. The
// room is created on first use.
func (s *RoomServer) handleJoin(sess *session, in inboundMessage) error {
	if sess.bound() {
		return errors.FailedPreconditionf("already in room %s", sess.code)
	}
	code, err := room.NormalizeCode(in.RoomCode)
	if err != nil {
		return err
	}

	if in.IsScreen {
		sess.conn.IsScreen = true
		sess.room, sess.code = s.Store.Subscribe(code, sess.conn), code
		return nil
	}

	r, _, err := s.Store.Join(code, sess.conn, room.JoinParams{
		Name:     strings.TrimSpace(in.PlayerName),
		Pronouns: in.Pronouns,
		MBTIType: in.MBTIType,
		Stats:    in.Stats,
	})
	if err != nil {
		return err
	}
	sess.room, sess.code = r, code
	return nil
}

// leave unbinds the session. A departure can complete the day's action set,
// so surviving rooms get an automatic resolution check.
func (s *RoomServer) leave(sess *session) {
	r, code := sess.room, sess.code
	sess.unbind()
	if r.Closed() {
		// Already removed from the store along with everyone else.
		return
	}
	deleted := s.Store.RemovePlayer(code, sess.conn.ID)
	if !deleted && !sess.conn.IsScreen {
		go s.resolveWhenReady(r)
	}
}

// startGame generates the prologue off the read loop and announces the start.
func (s *RoomServer) startGame(r *room.Room) {
	narration := s.Pipeline.Prologue(s.ctx, r)
	r.AnnounceStart(narration)
}

// resolveDay runs the pipeline for r. requester, if set, is told when the
// resolution could not begin.
func (s *RoomServer) resolveDay(r *room.Room, requester *room.Connection) {
	if _, err := s.Pipeline.ResolveDay(s.ctx, r); err != nil {
		s.Logger.WithField("room", r.Code).Infof("resolution not started: %v", err)
		if requester != nil {
			requester.WriteError(err)
		}
	}
}

// resolveWhenReady resolves the day only if every living player has acted.
func (s *RoomServer) resolveWhenReady(r *room.Room) {
	if _, err := s.Pipeline.ResolveIfReady(s.ctx, r); err != nil {
		s.Logger.WithField("room", r.Code).Debugf("no automatic resolution: %v", err)
	}
}

// writePump drains the connection's queue onto the socket and keeps it alive
// with periodic pings. A room-closed event is the last frame the socket gets.
func (s *RoomServer) writePump(ctx context.Context, c *websocket.Conn, conn *room.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				s.Logger.Warnf("Connection %s: failed to marshal %q: %v", conn.ID, ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.Warnf("Connection %s: write failed: %v", conn.ID, err)
				conn.Cancel()
				return
			}
			if ev.Type == room.EventRoomClosed {
				c.Close(websocket.StatusNormalClosure, "room closed")
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Logger.Warnf("Connection %s: ping failed: %v. Assuming disconnect.", conn.ID, err)
				conn.Cancel()
				return
			}
		}
	}
}
