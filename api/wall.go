package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rakugaki/rakugaki/login"
	"github.com/rakugaki/rakugaki/wall"
)

// ---------------------------------------------------------------------------
// /api/wall
// ---------------------------------------------------------------------------

// Clients ping every 30 seconds; three missed pings in a row mean the
// connection is dead. Variables so tests can shorten them.
var (
	handshakeTimeout = 10 * time.Second
	idleTimeout      = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Wall ids are unguessable capabilities, so any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWall upgrades the connection and runs the wall protocol: hello,
// login, then requests and notifications until either side hangs up.
func (s *Server) handleWall(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(s.Config.Haku.MaxSourceLen) + 65536)

	// The whole handshake has to finish within one budget; a socket that
	// never logs in must not pin a connection slot.
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	if err := conn.WriteJSON(Hello{Version: Version}); err != nil {
		return
	}

	broker, session, err := s.performLogin(conn)
	if err != nil {
		log.Debugf("login failed: %v", err)
		return
	}
	defer broker.Leave(session.ID)
	_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

	c := &connection{
		server:     s,
		conn:       conn,
		broker:     broker,
		session:    session,
		responses:  make(chan frames, 16),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go c.writeLoop()
	c.readLoop()
}

// performLogin reads and answers the login request.
func (s *Server) performLogin(conn *websocket.Conn) (*wall.Broker, *wall.Session, error) {
	fail := func(kind, message string) (*wall.Broker, *wall.Session, error) {
		_ = conn.WriteJSON(ErrorResponse{Response: "error", Kind: kind, Message: message})
		return nil, nil, fmt.Errorf("%s: %s", kind, message)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	var request LoginRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return fail(ErrorProtocol, "invalid login request")
	}
	if len(request.Init.Brush) > s.Config.Haku.MaxSourceLen {
		return fail(ErrorProtocol, "brush source is too long")
	}

	status, err := s.Logins.Verify(request.User, request.Secret)
	if err != nil {
		log.Errorf("verifying %s: %v", request.User, err)
		return fail(ErrorLoginFailed, "")
	}
	switch status {
	case login.StatusUserDoesNotExist:
		return fail(ErrorUserDoesNotExist, "")
	case login.StatusInvalidSecret:
		return fail(ErrorLoginFailed, "")
	}
	nickname, err := s.Logins.Nickname(request.User)
	if err != nil {
		return fail(ErrorLoginFailed, "")
	}

	var broker *wall.Broker
	if request.Wall == nil {
		broker, err = s.Hub.Create(request.User)
	} else {
		broker, err = s.Hub.Open(*request.Wall, request.User)
	}
	if errors.Is(err, wall.ErrInvalidWallID) {
		return fail(ErrorProtocol, "invalid wall id")
	}
	if err != nil {
		log.Errorf("opening wall: %v", err)
		return fail(ErrorLoginFailed, "")
	}

	session, online, err := broker.Join(request.User, nickname, request.Init.Brush)
	if errors.Is(err, wall.ErrTooManySessions) {
		return fail(ErrorTooManySessions, "")
	}
	if err != nil {
		return fail(ErrorLoginFailed, "")
	}

	settings := broker.Settings()
	err = conn.WriteJSON(LoggedIn{
		Response: "loggedIn",
		Wall:     broker.WallID(),
		WallInfo: WallInfo{
			ChunkSize:  settings.ChunkSize,
			PaintArea:  settings.PaintArea,
			HakuLimits: s.Config.Haku,
			Online:     online,
		},
		SessionID: session.ID,
	})
	if err != nil {
		broker.Leave(session.ID)
		return nil, nil, err
	}
	return broker, session, nil
}

// ---------------------------------------------------------------------------
// Connection loops
// ---------------------------------------------------------------------------

// frames is one outgoing protocol message: a JSON payload, optionally
// followed by a binary frame.
type frames struct {
	payload any
	binary  []byte
}

type connection struct {
	server     *Server
	conn       *websocket.Conn
	broker     *wall.Broker
	session    *wall.Session
	responses  chan frames
	readerDone chan struct{}
	writerDone chan struct{}

	// Last viewport this session asked for, in chunk units. Only the
	// readLoop goroutine touches these.
	haveViewport        bool
	viewportTopLeft     wall.ChunkPosition
	viewportBottomRight wall.ChunkPosition
}

// writeLoop is the only goroutine writing to the socket after login.
func (c *connection) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case n := <-c.session.Notifications():
			if err := c.conn.WriteJSON(NotifyWall{Notify: "wall", SessionID: n.SessionID, WallEvent: n.Event}); err != nil {
				c.conn.Close()
				return
			}
		case f := <-c.responses:
			if err := c.conn.WriteJSON(f.payload); err != nil {
				c.conn.Close()
				return
			}
			if f.binary != nil {
				if err := c.conn.WriteMessage(websocket.BinaryMessage, f.binary); err != nil {
					c.conn.Close()
					return
				}
			}
		case <-c.session.Kicked():
			log.Debugf("session %d kicked: outbox overflow", c.session.ID)
			c.conn.Close()
			return
		case <-c.readerDone:
			return
		}
	}
}

// respond queues an outgoing message, giving up if the writer is gone.
func (c *connection) respond(f frames) {
	select {
	case c.responses <- f:
	case <-c.writerDone:
	}
}

func (c *connection) readLoop() {
	defer close(c.readerDone)

	var iterator *wall.ChunkIterator
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		var request Request
		if err := json.Unmarshal(data, &request); err != nil {
			c.respond(frames{payload: protocolError("invalid JSON")})
			return
		}

		switch request.Request {
		case RequestWall:
			if !c.handleWallEvent(request.WallEvent) {
				return
			}
		case RequestViewport:
			it, ok := c.handleViewport(request.TopLeft, request.BottomRight)
			if !ok {
				return
			}
			iterator = it
			c.sendChunkPage(iterator)
		case RequestMoreChunks:
			c.sendChunkPage(iterator)
		case RequestPing:
			c.respond(frames{payload: NotifyPong{Notify: "pong"}})
		default:
			c.respond(frames{payload: protocolError("unknown request")})
			return
		}
	}
}

// handleWallEvent validates a client event and forwards it to the broker.
// Invalid events are protocol violations and end the connection.
func (c *connection) handleWallEvent(event *wall.Event) bool {
	if event == nil {
		c.respond(frames{payload: protocolError("missing wallEvent")})
		return false
	}
	switch event.Event {
	case wall.EventCursor:
		if event.Position == nil {
			c.respond(frames{payload: protocolError("cursor event needs a position")})
			return false
		}
	case wall.EventSetBrush:
		if len(event.Brush) > c.server.Config.Haku.MaxSourceLen {
			c.respond(frames{payload: protocolError("brush source is too long")})
			return false
		}
	case wall.EventPlot:
		if len(event.Points) > c.server.Config.Wall.MaxPlotPoints {
			c.respond(frames{payload: protocolError("too many points in one plot")})
			return false
		}
	default:
		// join and leave are server-generated; a client sending them is
		// broken or hostile.
		c.respond(frames{payload: protocolError("invalid wall event")})
		return false
	}
	c.broker.Event(c.session.ID, *event)
	return true
}

// handleViewport starts a chunk download for a viewport rectangle given in
// chunk units. Chunks already covered by the session's previous viewport are
// skipped; the client keeps what it has and only receives what scrolled into
// view.
func (c *connection) handleViewport(topLeft, bottomRight *wall.ChunkPosition) (*wall.ChunkIterator, bool) {
	if topLeft == nil || bottomRight == nil {
		c.respond(frames{payload: protocolError("viewport needs topLeft and bottomRight")})
		return nil, false
	}
	tl, br := *topLeft, *bottomRight
	if !tl.InBounds() || !br.InBounds() {
		c.respond(frames{payload: protocolError("chunk position out of range")})
		return nil, false
	}
	if tl.X > br.X || tl.Y > br.Y {
		c.respond(frames{payload: protocolError("viewport corners are flipped")})
		return nil, false
	}
	area := int64(br.X-tl.X+1) * int64(br.Y-tl.Y+1)
	if area > int64(c.server.Config.Wall.MaxViewportChunks) {
		c.respond(frames{payload: protocolError("viewport covers too many chunks")})
		return nil, false
	}
	iterator := wall.NewChunkIterator(tl, br)
	if c.haveViewport {
		iterator.Exclude(c.viewportTopLeft, c.viewportBottomRight)
	}
	c.haveViewport = true
	c.viewportTopLeft = tl
	c.viewportBottomRight = br
	return iterator, true
}

// sendChunkPage streams the next page of the pending viewport download.
// Without a pending viewport the page is empty and hasMore is false.
func (c *connection) sendChunkPage(iterator *wall.ChunkIterator) {
	records := []ChunkRecord{}
	var binary []byte
	hasMore := false

	if iterator != nil {
		positions := iterator.TakeNext(c.server.Config.Wall.ChunksPerMessage)
		encoded, err := c.broker.DownloadChunks(positions)
		if err != nil {
			log.Errorf("downloading chunks: %v", err)
			c.respond(frames{payload: protocolError("chunk download failed")})
			return
		}
		for _, chunk := range encoded {
			records = append(records, ChunkRecord{
				Position: chunk.Position,
				Offset:   len(binary),
				Length:   len(chunk.Data),
			})
			binary = append(binary, chunk.Data...)
		}
		hasMore = !iterator.Done()
	}

	if len(records) == 0 {
		binary = nil
	}
	c.respond(frames{payload: NotifyChunks{Notify: "chunks", Chunks: records, HasMore: hasMore}, binary: binary})
}
