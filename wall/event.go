package wall

// ---------------------------------------------------------------------------
// Wall events
// ---------------------------------------------------------------------------

// Point is a position in wall pixel coordinates.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Event kinds. Clients may only send cursor, setBrush, and plot; join and
// leave are generated by the server.
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventCursor   = "cursor"
	EventSetBrush = "setBrush"
	EventPlot     = "plot"
)

// Event is a single thing happening on a wall, in the shape it crosses the
// wire in. Unused fields stay empty for each kind.
type Event struct {
	Event    string  `json:"event"`
	Nickname string  `json:"nickname,omitempty"` // join
	Position *Point  `json:"position,omitempty"` // cursor
	Brush    string  `json:"brush,omitempty"`    // setBrush
	Points   []Point `json:"points,omitempty"`   // plot
}

// Droppable reports whether the event may be dropped when a client cannot
// keep up. Losing a cursor twitch is invisible; losing a plot is not.
func (e *Event) Droppable() bool { return e.Event == EventCursor }

// Notification is an event broadcast to sessions, attributed to the session
// that caused it.
type Notification struct {
	SessionID uint32 `json:"sessionId"`
	Event     Event  `json:"wallEvent"`
}
