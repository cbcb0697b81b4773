// internal/room/connection.go
package room

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/errors"
)

// outQueueSize bounds the events buffered for one slow client.
const outQueueSize = 32

// Connection is one live websocket subscribed to a room: a phone (which is
// also a Player) or a shared screen (broadcast only).
type Connection struct {
	ID       uuid.UUID
	IsScreen bool
	// Cancel stops the goroutines serving this connection.
	Cancel func()
	// OutChan is drained by the connection's write pump.
	OutChan chan Event

	logger *logrus.Entry
}

// NewConnection allocates a connection with a buffered outbound queue. A nil
// logger falls back to the logrus standard logger.
func NewConnection(isScreen bool, cancel func(), logger *logrus.Logger) *Connection {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.New()
	return &Connection{
		ID:       id,
		IsScreen: isScreen,
		Cancel:   cancel,
		OutChan:  make(chan Event, outQueueSize),
		logger:   logger.WithField("conn", id),
	}
}

// Write pushes an event onto OutChan without blocking. Full queues drop the
// event, so holding a room lock while writing never waits on the network.
func (conn *Connection) Write(ev Event) {
	select {
	case conn.OutChan <- ev:
	default:
		conn.logger.Warnf("OutChan full, dropped event %q", ev.Type)
	}
}

// WriteError sends a coded error frame to this connection only.
func (conn *Connection) WriteError(err error) {
	conn.Write(Event{
		Type: EventError,
		Payload: ErrorPayload{
			Code:    errors.CodeOf(err).String(),
			Message: err.Error(),
		},
	})
}
