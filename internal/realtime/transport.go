package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Interest scopes a channel to the routing changes a display cares about.
type Interest struct {
	StationID *uuid.UUID
}

// GlobalInterest covers every station.
func GlobalInterest() Interest {
	return Interest{}
}

// StationInterest covers one station's routings.
func StationInterest(stationID uuid.UUID) Interest {
	return Interest{StationID: &stationID}
}

// Topic returns the logical channel name for the interest.
func (i Interest) Topic() string {
	if i.StationID == nil {
		return "routings:all"
	}
	return fmt.Sprintf("routings:station:%s", i.StationID)
}

// Message is one change notification delivered over a channel.
type Message struct {
	EventType  string
	Data       []byte
	Attributes map[string]string
}

// Conn is one open transport channel. Receive delivers change notifications;
// Closed fires once when the transport drops the channel, with the cause.
type Conn interface {
	Receive() <-chan Message
	Closed() <-chan error
	Heartbeat(ctx context.Context) error
	Close() error
}

// Transport opens channels against the realtime backend. Open blocks until
// the channel is live or the context expires.
type Transport interface {
	Open(ctx context.Context, interest Interest) (Conn, error)
}

// Callbacks receive a channel's lifecycle and data events. Nil members are
// skipped.
type Callbacks struct {
	OnData       func(msg Message)
	OnError      func(err error)
	OnConnect    func(channelID string)
	OnDisconnect func(channelID string, err error)
}
