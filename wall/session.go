package wall

import (
	"github.com/rakugaki/rakugaki/brush"
)

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// Session is one connected client on a wall. Its mutable fields are owned by
// the broker goroutine; connection handlers only read the channels.
type Session struct {
	ID          uint32
	UserID      string
	Nickname    string
	Cursor      *Point
	BrushSource string

	brush         *brush.Brush
	notifications chan Notification
	kicked        chan struct{}
	isKicked      bool
}

func newSession(sessionID uint32, userID, nickname string, limits brush.Limits, outboxSize int) *Session {
	return &Session{
		ID:            sessionID,
		UserID:        userID,
		Nickname:      nickname,
		brush:         brush.NewBrush(limits),
		notifications: make(chan Notification, outboxSize),
		kicked:        make(chan struct{}),
	}
}

// Notifications is the stream of events the connection must forward to the
// client.
func (s *Session) Notifications() <-chan Notification { return s.notifications }

// Kicked is closed when the broker gives up on the session, typically
// because its outbox overflowed with undroppable events.
func (s *Session) Kicked() <-chan struct{} { return s.kicked }

// send queues a notification without ever blocking the broker. Droppable
// events are silently lost under pressure; anything else overflowing means
// the client is too far behind to stay consistent, so it gets kicked.
func (s *Session) send(n Notification) {
	if s.isKicked {
		return
	}
	select {
	case s.notifications <- n:
	default:
		if !n.Event.Droppable() {
			s.isKicked = true
			close(s.kicked)
		}
	}
}

// OnlineSession is the public snapshot of a session sent on login.
type OnlineSession struct {
	SessionID uint32 `json:"sessionId"`
	Nickname  string `json:"nickname"`
	Cursor    *Point `json:"cursor,omitempty"`
	Brush     string `json:"brush"`
}
