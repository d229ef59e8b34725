package wall

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rakugaki/rakugaki/brush"
	"github.com/rakugaki/rakugaki/render"
)

func testBrokerConfig() BrokerConfig {
	return BrokerConfig{
		MaxSessions:      4,
		MaxPlotPoints:    8,
		AutosaveInterval: time.Minute,
		EncoderCacheSize: 16,
		OutboxSize:       16,
		SaveQueueSize:    16,
		BrushLimits:      brush.DefaultLimits(),
	}
}

func testBroker(t *testing.T, config BrokerConfig) *Broker {
	t.Helper()
	w := NewWall("wall_test", Settings{ChunkSize: 16, PaintArea: 8}, nil)
	b := NewBroker(w, config)
	t.Cleanup(b.Stop)
	return b
}

// syncBroker waits until every previously submitted request has been
// handled. Requests go through one channel in order, so a synchronous round
// trip flushes the queue.
func syncBroker(t *testing.T, b *Broker) {
	t.Helper()
	if _, err := b.DownloadChunks(nil); err != nil {
		t.Fatal(err)
	}
}

func receiveNotification(t *testing.T, s *Session) *Notification {
	t.Helper()
	select {
	case n := <-s.Notifications():
		return &n
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Joining and leaving
// ---------------------------------------------------------------------------

func TestBrokerJoinAnnounces(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	alice, online, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0].SessionID != alice.ID {
		t.Errorf("online = %v, want just alice", online)
	}

	bob, online, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 2 {
		t.Errorf("online = %v, want alice and bob", online)
	}

	n := receiveNotification(t, alice)
	if n == nil {
		t.Fatal("alice did not hear about bob joining")
	}
	if n.SessionID != bob.ID || n.Event.Event != EventJoin || n.Event.Nickname != "bob" {
		t.Errorf("notification = %+v, want bob's join", n)
	}
	if got := receiveNotification(t, bob); got != nil {
		t.Errorf("bob heard about their own join: %+v", got)
	}
}

func TestBrokerLeaveAnnounces(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	alice, _, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	receiveNotification(t, alice) // bob's join

	b.Leave(bob.ID)
	syncBroker(t, b)

	n := receiveNotification(t, alice)
	if n == nil {
		t.Fatal("alice did not hear about bob leaving")
	}
	if n.SessionID != bob.ID || n.Event.Event != EventLeave {
		t.Errorf("notification = %+v, want bob's leave", n)
	}
}

func TestBrokerSessionCap(t *testing.T) {
	config := testBrokerConfig()
	config.MaxSessions = 1
	b := testBroker(t, config)

	if _, _, err := b.Join("user_alice", "alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.Join("user_bob", "bob", ""); err != ErrTooManySessions {
		t.Errorf("second join err = %v, want ErrTooManySessions", err)
	}
}

func TestBrokerJoinWithBrokenBrush(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	// A brush that does not compile still joins; it just cannot plot.
	session, _, err := b.Join("user_alice", "alice", "1 +")
	if err != nil {
		t.Fatal(err)
	}
	if session.BrushSource != "1 +" {
		t.Errorf("BrushSource = %q, want the broken source kept verbatim", session.BrushSource)
	}
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestBrokerEventsSkipTheSender(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	alice, _, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	receiveNotification(t, alice) // bob's join

	b.Event(alice.ID, Event{Event: EventCursor, Position: &Point{X: 1, Y: 2}})
	syncBroker(t, b)

	n := receiveNotification(t, bob)
	if n == nil {
		t.Fatal("bob did not receive alice's cursor")
	}
	if n.SessionID != alice.ID || n.Event.Event != EventCursor {
		t.Errorf("notification = %+v, want alice's cursor", n)
	}
	if n.Event.Position == nil || n.Event.Position.X != 1 || n.Event.Position.Y != 2 {
		t.Errorf("position = %+v, want (1, 2)", n.Event.Position)
	}
	// The sender already knows where its own cursor is.
	if got := receiveNotification(t, alice); got != nil {
		t.Errorf("alice received their own event: %+v", got)
	}
}

func TestBrokerPlotPaintsTheWall(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	session, _, err := b.Join("user_alice", "alice", "stroke 8 #f00 (vec 0 0)")
	if err != nil {
		t.Fatal(err)
	}

	b.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})

	chunks, err := b.DownloadChunks([]ChunkPosition{{0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("DownloadChunks = %v, want one encoded chunk", chunks)
	}
	if chunks[0].Position != (ChunkPosition{0, 0}) || len(chunks[0].Data) == 0 {
		t.Errorf("chunk = %+v, want encoded data at (0, 0)", chunks[0])
	}
}

func TestBrokerPlotWithoutBrushIsIgnored(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	session, _, err := b.Join("user_alice", "alice", "1 +")
	if err != nil {
		t.Fatal(err)
	}

	b.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})

	chunks, err := b.DownloadChunks([]ChunkPosition{{0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("DownloadChunks = %v, want nothing painted", chunks)
	}
}

func TestBrokerPlotPointLimit(t *testing.T) {
	config := testBrokerConfig()
	config.MaxPlotPoints = 1
	b := testBroker(t, config)

	session, _, err := b.Join("user_alice", "alice", "stroke 8 #f00 (vec 0 0)")
	if err != nil {
		t.Fatal(err)
	}

	// Only the first point survives the cap; the second would land in
	// chunk (2, 2).
	b.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}, {X: 40, Y: 40}}})

	chunks, err := b.DownloadChunks([]ChunkPosition{{0, 0}, {2, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Position != (ChunkPosition{0, 0}) {
		t.Errorf("DownloadChunks = %v, want only chunk (0, 0)", chunks)
	}
}

func TestBrokerSetBrush(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	alice, _, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	receiveNotification(t, alice)

	b.Event(alice.ID, Event{Event: EventSetBrush, Brush: "stroke 8 #f00 (vec 0 0)"})
	syncBroker(t, b)

	n := receiveNotification(t, bob)
	if n == nil || n.Event.Event != EventSetBrush {
		t.Fatalf("notification = %+v, want alice's setBrush", n)
	}
	if n.Event.Brush != "stroke 8 #f00 (vec 0 0)" {
		t.Errorf("brush = %q, want the new source", n.Event.Brush)
	}

	// The new brush paints.
	b.Event(alice.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})
	chunks, err := b.DownloadChunks([]ChunkPosition{{0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Errorf("DownloadChunks = %v, want one chunk after setBrush", chunks)
	}
}

func TestBrokerUnknownEventsIgnored(t *testing.T) {
	b := testBroker(t, testBrokerConfig())

	alice, _, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	receiveNotification(t, alice)

	b.Event(alice.ID, Event{Event: "selfdestruct"})
	syncBroker(t, b)

	if n := receiveNotification(t, bob); n != nil {
		t.Errorf("unknown event was broadcast: %+v", n)
	}
}

func TestBrokerKicksSlowSessions(t *testing.T) {
	config := testBrokerConfig()
	config.OutboxSize = 1
	b := testBroker(t, config)

	alice, _, err := b.Join("user_alice", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := b.Join("user_bob", "bob", "")
	if err != nil {
		t.Fatal(err)
	}

	// Alice never reads. The outbox holds bob's join; the next undroppable
	// event overflows it.
	b.Event(bob.ID, Event{Event: EventSetBrush, Brush: "1"})
	syncBroker(t, b)

	select {
	case <-alice.Kicked():
	default:
		t.Error("alice should have been kicked")
	}

	// Droppable events never kick.
	b.Event(bob.ID, Event{Event: EventCursor, Position: &Point{}})
	syncBroker(t, b)
	select {
	case <-bob.Kicked():
		t.Error("bob was kicked with an empty outbox")
	default:
	}
}

func TestBrokerStop(t *testing.T) {
	w := NewWall("wall_test", Settings{ChunkSize: 16, PaintArea: 8}, nil)
	b := NewBroker(w, testBrokerConfig())
	b.Stop()
	b.Stop() // idempotent

	if _, _, err := b.Join("user_alice", "alice", ""); err != ErrBrokerStopped {
		t.Errorf("Join after Stop err = %v, want ErrBrokerStopped", err)
	}
	if _, err := b.DownloadChunks(nil); err != ErrBrokerStopped {
		t.Errorf("DownloadChunks after Stop err = %v, want ErrBrokerStopped", err)
	}
}

// ---------------------------------------------------------------------------
// Autosave
// ---------------------------------------------------------------------------

// breakChunkStorage replaces the chunks directory with a regular file, so
// every subsequent chunk write fails.
func breakChunkStorage(t *testing.T, dir string) {
	t.Helper()
	chunks := filepath.Join(dir, "chunks")
	if err := os.RemoveAll(chunks); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(chunks, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAutoSaverConfirmsWrites(t *testing.T) {
	dir := t.TempDir()
	database, err := OpenDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	saver := newAutoSaver(database, 4)

	pixmap := render.NewPixmap(8, 8)
	pixmap.Set(0, 0, 255, 0, 0, 255)
	position := ChunkPosition{1, 2}
	if !saver.enqueue(saveJob{position: position, revision: 7, pixmap: pixmap}) {
		t.Fatal("enqueue refused with an empty queue")
	}
	saver.stop()

	select {
	case result := <-saver.saved:
		if result.position != position || result.revision != 7 {
			t.Errorf("confirmation = %+v, want revision 7 at %v", result, position)
		}
	default:
		t.Fatal("successful write was not confirmed")
	}
	chunk, err := database.LoadChunk(position, 8)
	if err != nil {
		t.Fatal(err)
	}
	if chunk == nil {
		t.Error("chunk never reached the disk")
	}
}

func TestAutoSaverFailedWritesAreNotConfirmed(t *testing.T) {
	dir := t.TempDir()
	database, err := OpenDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	breakChunkStorage(t, dir)
	saver := newAutoSaver(database, 4)

	pixmap := render.NewPixmap(8, 8)
	pixmap.Set(0, 0, 255, 0, 0, 255)
	saver.enqueue(saveJob{position: ChunkPosition{0, 0}, revision: 1, pixmap: pixmap})
	saver.stop()

	select {
	case result := <-saver.saved:
		t.Errorf("failed write was confirmed: %+v", result)
	default:
	}
}

func TestBrokerAutosaveWritesInBackground(t *testing.T) {
	dir := t.TempDir()
	database, err := OpenDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	config := testBrokerConfig()
	config.AutosaveInterval = 5 * time.Millisecond
	w := NewWall("wall_test", Settings{ChunkSize: 16, PaintArea: 8}, database)
	b := NewBroker(w, config)
	t.Cleanup(b.Stop)

	session, _, err := b.Join("user_alice", "alice", "stroke 8 #f00 (vec 0 0)")
	if err != nil {
		t.Fatal(err)
	}
	b.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})
	syncBroker(t, b)

	deadline := time.Now().Add(2 * time.Second)
	for {
		chunk, err := database.LoadChunk(ChunkPosition{0, 0}, 16)
		if err != nil {
			t.Fatal(err)
		}
		if chunk != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("autosave never wrote the painted chunk")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBrokerStopKeepsUnwrittenPaint(t *testing.T) {
	dir := t.TempDir()
	database, err := OpenDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWall("wall_test", Settings{ChunkSize: 16, PaintArea: 8}, database)
	b := NewBroker(w, testBrokerConfig())

	session, _, err := b.Join("user_alice", "alice", "stroke 8 #f00 (vec 0 0)")
	if err != nil {
		t.Fatal(err)
	}
	b.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})
	syncBroker(t, b)

	breakChunkStorage(t, dir)
	b.Stop()

	// The broker goroutine is gone; the wall is safe to inspect directly.
	chunk := w.chunks[ChunkPosition{0, 0}]
	if chunk == nil {
		t.Fatal("painted chunk is missing")
	}
	if !chunk.Modified() {
		t.Error("a chunk whose write failed must stay dirty")
	}
}

// ---------------------------------------------------------------------------
// Encoder cache
// ---------------------------------------------------------------------------

func TestChunkEncoderCaches(t *testing.T) {
	encoder := NewChunkEncoder(16)
	chunk := NewChunk(8)
	chunk.Pixmap.Set(0, 0, 255, 0, 0, 255)
	chunk.MarkModified()

	first, err := encoder.Encode(ChunkPosition{0, 0}, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("encoded chunk is empty")
	}
	second, err := encoder.Encode(ChunkPosition{0, 0}, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Error("unchanged chunk must come from the cache")
	}
}

func TestChunkEncoderInvalidatesOnPaint(t *testing.T) {
	encoder := NewChunkEncoder(16)
	chunk := NewChunk(8)
	chunk.Pixmap.Set(0, 0, 255, 0, 0, 255)
	chunk.MarkModified()

	first, err := encoder.Encode(ChunkPosition{0, 0}, chunk)
	if err != nil {
		t.Fatal(err)
	}

	chunk.Pixmap.Set(1, 0, 0, 255, 0, 255)
	chunk.MarkModified()
	second, err := encoder.Encode(ChunkPosition{0, 0}, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == len(second) && &first[0] == &second[0] {
		t.Error("painting must invalidate the cached encoding")
	}
}

func TestChunkEncoderBlankChunks(t *testing.T) {
	encoder := NewChunkEncoder(16)
	data, err := encoder.Encode(ChunkPosition{0, 0}, nil)
	if err != nil || data != nil {
		t.Errorf("Encode(nil chunk) = %v, %v, want nil, nil", data, err)
	}
	data, err = encoder.Encode(ChunkPosition{0, 0}, NewChunk(8))
	if err != nil || data != nil {
		t.Errorf("Encode(blank chunk) = %v, %v, want nil, nil", data, err)
	}
}

func TestChunkEncoderEvicts(t *testing.T) {
	encoder := NewChunkEncoder(1)
	a := NewChunk(8)
	a.Pixmap.Set(0, 0, 255, 0, 0, 255)
	b := NewChunk(8)
	b.Pixmap.Set(0, 0, 0, 255, 0, 255)

	firstA, err := encoder.Encode(ChunkPosition{0, 0}, a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := encoder.Encode(ChunkPosition{1, 0}, b); err != nil {
		t.Fatal(err)
	}
	// a was evicted, so encoding it again allocates fresh bytes.
	secondA, err := encoder.Encode(ChunkPosition{0, 0}, a)
	if err != nil {
		t.Fatal(err)
	}
	if &firstA[0] == &secondA[0] {
		t.Error("expected a to be re-encoded after eviction")
	}
	if len(encoder.entries) != 1 {
		t.Errorf("cache holds %d entries, want 1", len(encoder.entries))
	}
}
