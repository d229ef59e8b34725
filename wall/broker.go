package wall

import (
	"errors"
	"time"

	"github.com/rakugaki/rakugaki/brush"
)

// ---------------------------------------------------------------------------
// Broker
// ---------------------------------------------------------------------------

// ErrTooManySessions is returned when a wall is at its session cap.
var ErrTooManySessions = errors.New("too many sessions on this wall")

// ErrBrokerStopped is returned for requests to a stopped broker.
var ErrBrokerStopped = errors.New("wall is shutting down")

// BrokerConfig tunes one wall's broker.
type BrokerConfig struct {
	MaxSessions      int
	MaxPlotPoints    int
	AutosaveInterval time.Duration
	EncoderCacheSize int
	OutboxSize       int
	SaveQueueSize    int
	BrushLimits      brush.Limits
}

// DefaultBrokerConfig returns sensible broker settings.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		MaxSessions:      128,
		MaxPlotPoints:    64,
		AutosaveInterval: 10 * time.Second,
		EncoderCacheSize: 1024,
		OutboxSize:       256,
		SaveQueueSize:    256,
		BrushLimits:      brush.DefaultLimits(),
	}
}

// Broker owns a wall and everything on it. All access goes through its
// goroutine, one request at a time, so the wall itself needs no locking and
// paint order is globally consistent.
type Broker struct {
	settings Settings
	config   BrokerConfig

	requests chan any
	quit     chan struct{}
	stopped  chan struct{}

	// Owned by the broker goroutine.
	wall          *Wall
	sessions      map[uint32]*Session
	nextSessionID uint32
	encoder       *ChunkEncoder
	saver         *autoSaver
}

type joinRequest struct {
	userID      string
	nickname    string
	brushSource string
	reply       chan joinReply
}

type joinReply struct {
	session *Session
	online  []OnlineSession
	err     error
}

type leaveRequest struct {
	sessionID uint32
}

type eventRequest struct {
	sessionID uint32
	event     Event
}

type downloadRequest struct {
	positions []ChunkPosition
	reply     chan downloadReply
}

type downloadReply struct {
	chunks []EncodedChunk
	err    error
}

// EncodedChunk is one chunk image ready to be sent to a client.
type EncodedChunk struct {
	Position ChunkPosition
	Data     []byte
}

// NewBroker starts a broker for a wall. The wall must not be touched by
// anyone else from here on.
func NewBroker(w *Wall, config BrokerConfig) *Broker {
	b := &Broker{
		settings: w.Settings(),
		config:   config,
		requests: make(chan any),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		wall:     w,
		sessions: make(map[uint32]*Session),
		encoder:  NewChunkEncoder(config.EncoderCacheSize),
	}
	if w.database != nil {
		b.saver = newAutoSaver(w.database, config.SaveQueueSize)
	}
	go b.run()
	return b
}

// Settings returns the wall's settings. Safe to call from any goroutine;
// settings never change after creation.
func (b *Broker) Settings() Settings { return b.settings }

// WallID returns the wall's id.
func (b *Broker) WallID() string { return b.wall.id }

// Stop flushes unsaved chunks and shuts the broker down.
func (b *Broker) Stop() {
	select {
	case <-b.stopped:
		return
	case b.quit <- struct{}{}:
	}
	<-b.stopped
}

// Join adds a session to the wall and announces it to everyone else.
func (b *Broker) Join(userID, nickname, brushSource string) (*Session, []OnlineSession, error) {
	reply := make(chan joinReply, 1)
	if !b.send(joinRequest{userID: userID, nickname: nickname, brushSource: brushSource, reply: reply}) {
		return nil, nil, ErrBrokerStopped
	}
	r := <-reply
	return r.session, r.online, r.err
}

// Leave removes a session and announces its departure.
func (b *Broker) Leave(sessionID uint32) {
	b.send(leaveRequest{sessionID: sessionID})
}

// Event processes a wall event a session sent.
func (b *Broker) Event(sessionID uint32, event Event) {
	b.send(eventRequest{sessionID: sessionID, event: event})
}

// DownloadChunks encodes the requested chunks. Blank chunks are omitted
// from the result.
func (b *Broker) DownloadChunks(positions []ChunkPosition) ([]EncodedChunk, error) {
	reply := make(chan downloadReply, 1)
	if !b.send(downloadRequest{positions: positions, reply: reply}) {
		return nil, ErrBrokerStopped
	}
	r := <-reply
	return r.chunks, r.err
}

func (b *Broker) send(request any) bool {
	select {
	case b.requests <- request:
		return true
	case <-b.stopped:
		return false
	}
}

// ---------------------------------------------------------------------------
// Broker goroutine
// ---------------------------------------------------------------------------

func (b *Broker) run() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.config.AutosaveInterval)
	defer ticker.Stop()

	var saved chan saveResult
	if b.saver != nil {
		saved = b.saver.saved
	}

	for {
		select {
		case request := <-b.requests:
			switch r := request.(type) {
			case joinRequest:
				r.reply <- b.handleJoin(r)
			case leaveRequest:
				b.handleLeave(r.sessionID)
			case eventRequest:
				b.handleEvent(r.sessionID, r.event)
			case downloadRequest:
				r.reply <- b.handleDownload(r.positions)
			}
		case result := <-saved:
			b.handleSaved(result)
		case <-ticker.C:
			b.autosave()
		case <-b.quit:
			b.flush()
			return
		}
	}
}

func (b *Broker) handleJoin(r joinRequest) joinReply {
	if len(b.sessions) >= b.config.MaxSessions {
		return joinReply{err: ErrTooManySessions}
	}
	b.nextSessionID++
	session := newSession(b.nextSessionID, r.userID, r.nickname, b.config.BrushLimits, b.config.OutboxSize)
	session.BrushSource = r.brushSource
	if err := session.brush.SetBrush(r.brushSource); err != nil {
		// The session still joins; plotting is a no-op until the client
		// sets a brush that compiles.
		log.Debugf("session %d joined with a broken brush: %v", session.ID, err)
	}
	b.sessions[session.ID] = session

	b.broadcast(session.ID, Notification{
		SessionID: session.ID,
		Event:     Event{Event: EventJoin, Nickname: session.Nickname},
	})

	online := make([]OnlineSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		online = append(online, OnlineSession{
			SessionID: s.ID,
			Nickname:  s.Nickname,
			Cursor:    s.Cursor,
			Brush:     s.BrushSource,
		})
	}
	return joinReply{session: session, online: online}
}

func (b *Broker) handleLeave(sessionID uint32) {
	if _, ok := b.sessions[sessionID]; !ok {
		return
	}
	delete(b.sessions, sessionID)
	b.broadcast(sessionID, Notification{
		SessionID: sessionID,
		Event:     Event{Event: EventLeave},
	})
}

func (b *Broker) handleEvent(sessionID uint32, event Event) {
	session, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	switch event.Event {
	case EventCursor:
		session.Cursor = event.Position
	case EventSetBrush:
		session.BrushSource = event.Brush
		if err := session.brush.SetBrush(event.Brush); err != nil {
			log.Debugf("session %d set a broken brush: %v", sessionID, err)
		}
	case EventPlot:
		if !session.brush.Ready() {
			return
		}
		points := event.Points
		if len(points) > b.config.MaxPlotPoints {
			points = points[:b.config.MaxPlotPoints]
		}
		for _, point := range points {
			if err := b.wall.Plot(session.brush, point.X, point.Y); err != nil {
				log.Debugf("session %d plot at (%g, %g): %v", sessionID, point.X, point.Y, err)
				break
			}
		}
	default:
		return
	}
	// The sender already knows what it did; in particular it must not
	// repaint its own plots.
	b.broadcast(sessionID, Notification{SessionID: sessionID, Event: event})
}

func (b *Broker) handleDownload(positions []ChunkPosition) downloadReply {
	chunks := make([]EncodedChunk, 0, len(positions))
	for _, position := range positions {
		chunk, err := b.wall.EnsureChunk(position, false)
		if err != nil {
			return downloadReply{err: err}
		}
		data, err := b.encoder.Encode(position, chunk)
		if err != nil {
			return downloadReply{err: err}
		}
		if data != nil {
			chunks = append(chunks, EncodedChunk{Position: position, Data: data})
		}
	}
	return downloadReply{chunks: chunks}
}

func (b *Broker) broadcast(exceptSessionID uint32, n Notification) {
	for _, session := range b.sessions {
		if session.ID == exceptSessionID {
			continue
		}
		session.send(n)
	}
}

// autosave snapshots dirty chunks and queues them for writing. Chunks stay
// dirty until the saver confirms the write; a failed write just means the
// chunk gets queued again on the next tick.
func (b *Broker) autosave() {
	if b.saver == nil {
		return
	}
	for _, position := range b.wall.ModifiedChunks() {
		chunk := b.wall.chunks[position]
		b.saver.enqueue(saveJob{
			position: position,
			revision: chunk.Revision,
			pixmap:   chunk.Pixmap.Clone(),
		})
	}
}

// handleSaved marks a chunk clean up to the revision that hit the disk.
func (b *Broker) handleSaved(result saveResult) {
	chunk, ok := b.wall.chunks[result.position]
	if !ok {
		return
	}
	if result.revision > chunk.SavedRevision {
		chunk.SavedRevision = result.revision
	}
}

// flush writes every dirty chunk before shutdown. Chunks whose final write
// fails are logged and stay dirty, so a later open sees them as unsaved
// rather than silently losing the paint.
func (b *Broker) flush() {
	if b.saver == nil {
		return
	}
	b.saver.stop()
	for {
		select {
		case result := <-b.saver.saved:
			b.handleSaved(result)
			continue
		default:
		}
		break
	}
	for _, position := range b.wall.ModifiedChunks() {
		chunk := b.wall.chunks[position]
		if err := b.wall.database.SaveChunk(position, chunk); err != nil {
			log.Errorf("flushing chunk %s: %v", position, err)
			continue
		}
		chunk.SavedRevision = chunk.Revision
	}
}
