package wall

import (
	"testing"
)

func TestHubCreateAndReopen(t *testing.T) {
	hub := NewHub(t.TempDir(), Settings{ChunkSize: 16, PaintArea: 8}, testBrokerConfig())
	defer hub.StopAll()

	broker, err := hub.Create("user_alice")
	if err != nil {
		t.Fatal(err)
	}
	wallID := broker.WallID()

	again, err := hub.Open(wallID, "user_bob")
	if err != nil {
		t.Fatal(err)
	}
	if again != broker {
		t.Error("opening an already open wall must return the same broker")
	}
}

func TestHubRejectsInvalidIDs(t *testing.T) {
	hub := NewHub(t.TempDir(), DefaultSettings(), testBrokerConfig())
	defer hub.StopAll()

	tests := []string{
		"",
		"wall_short",
		"../../../etc/passwd",
		"user_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}
	for _, wallID := range tests {
		if _, err := hub.Open(wallID, "user_alice"); err != ErrInvalidWallID {
			t.Errorf("Open(%q) err = %v, want ErrInvalidWallID", wallID, err)
		}
	}
}

func TestHubPersistsSettings(t *testing.T) {
	dir := t.TempDir()
	created := Settings{ChunkSize: 16, PaintArea: 8}

	hub := NewHub(dir, created, testBrokerConfig())
	broker, err := hub.Create("user_alice")
	if err != nil {
		t.Fatal(err)
	}
	wallID := broker.WallID()
	hub.StopAll()

	// A hub with different defaults still opens the wall with the settings
	// it was created with.
	hub = NewHub(dir, DefaultSettings(), testBrokerConfig())
	defer hub.StopAll()
	broker, err = hub.Open(wallID, "user_bob")
	if err != nil {
		t.Fatal(err)
	}
	if broker.Settings() != created {
		t.Errorf("Settings() = %+v, want the creation settings %+v", broker.Settings(), created)
	}
}

func TestHubStopAllFlushes(t *testing.T) {
	dir := t.TempDir()
	hub := NewHub(dir, Settings{ChunkSize: 16, PaintArea: 8}, testBrokerConfig())

	broker, err := hub.Create("user_alice")
	if err != nil {
		t.Fatal(err)
	}
	wallID := broker.WallID()
	session, _, err := broker.Join("user_alice", "alice", "stroke 8 #f00 (vec 0 0)")
	if err != nil {
		t.Fatal(err)
	}
	broker.Event(session.ID, Event{Event: EventPlot, Points: []Point{{X: 8, Y: 8}}})
	syncBroker(t, broker)
	hub.StopAll()

	// The painted chunk must be on disk after shutdown.
	hub = NewHub(dir, DefaultSettings(), testBrokerConfig())
	defer hub.StopAll()
	broker, err = hub.Open(wallID, "user_alice")
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := broker.DownloadChunks([]ChunkPosition{{0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || len(chunks[0].Data) == 0 {
		t.Errorf("DownloadChunks = %v, want the chunk painted before shutdown", chunks)
	}
}
