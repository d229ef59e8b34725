package wall

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func paintedChunk(size int) *Chunk {
	chunk := NewChunk(size)
	chunk.Pixmap.Set(1, 2, 255, 0, 0, 255)
	chunk.Pixmap.Set(3, 4, 0, 255, 0, 128)
	chunk.MarkModified()
	return chunk
}

func TestSaveLoadChunk(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	position := ChunkPosition{3, -7}
	chunk := paintedChunk(8)
	if err := database.SaveChunk(position, chunk); err != nil {
		t.Fatal(err)
	}

	loaded, err := database.LoadChunk(position, 8)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("saved chunk did not load")
	}
	// Lossless round trip, byte for byte.
	if !bytes.Equal(loaded.Pixmap.Data(), chunk.Pixmap.Data()) {
		t.Error("loaded pixels differ from the saved ones")
	}
}

func TestLoadMissingChunk(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := database.LoadChunk(ChunkPosition{0, 0}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != nil {
		t.Errorf("LoadChunk = %v, want nil for a never painted chunk", chunk)
	}
}

func TestSaveBlankChunkDeletesFile(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	position := ChunkPosition{0, 0}
	if err := database.SaveChunk(position, paintedChunk(8)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(database.chunkPath(position)); err != nil {
		t.Fatalf("chunk file missing after save: %v", err)
	}

	// Erasing everything makes the chunk blank again; saving it must remove
	// the file so that blank and missing stay the same thing.
	if err := database.SaveChunk(position, NewChunk(8)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(database.chunkPath(position)); !os.IsNotExist(err) {
		t.Errorf("chunk file still exists after saving a blank chunk (err = %v)", err)
	}

	loaded, err := database.LoadChunk(position, 8)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Errorf("LoadChunk = %v, want nil after erasing", loaded)
	}

	// Saving a blank chunk that was never on disk is fine too.
	if err := database.SaveChunk(ChunkPosition{5, 5}, NewChunk(8)); err != nil {
		t.Errorf("saving a never persisted blank chunk: %v", err)
	}
}

func TestLoadChunkSizeMismatch(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	position := ChunkPosition{0, 0}
	if err := database.SaveChunk(position, paintedChunk(8)); err != nil {
		t.Fatal(err)
	}
	// A wrong-sized file cannot be used; it reads back as empty.
	chunk, err := database.LoadChunk(position, 16)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != nil {
		t.Errorf("LoadChunk = %v, want nil for a chunk of the wrong size", chunk)
	}
}

func TestLoadCorruptChunk(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	position := ChunkPosition{0, 0}
	if err := database.SaveChunk(position, paintedChunk(8)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(database.chunkPath(position), []byte("not a webp"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A chunk file that no longer decodes must not take the wall down; it
	// loads as if it was never painted.
	chunk, err := database.LoadChunk(position, 8)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != nil {
		t.Errorf("LoadChunk = %v, want nil for a corrupt chunk", chunk)
	}

	// Painting over the corrupt spot starts from a fresh blank chunk.
	w := NewWall("wall_test", Settings{ChunkSize: 8, PaintArea: 8}, database)
	fresh, err := w.EnsureChunk(position, true)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == nil || !fresh.Pixmap.Blank() {
		t.Error("EnsureChunk over a corrupt file must create a blank chunk")
	}
}

func TestSaveLoadMeta(t *testing.T) {
	database, err := OpenDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	meta := &Meta{
		Owner:     "user_alice",
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		Settings:  Settings{ChunkSize: 168, PaintArea: 504},
	}
	if err := database.SaveMeta(meta); err != nil {
		t.Fatal(err)
	}

	loaded, err := database.LoadMeta()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Owner != meta.Owner {
		t.Errorf("owner = %q, want %q", loaded.Owner, meta.Owner)
	}
	if !loaded.CreatedAt.Equal(meta.CreatedAt) {
		t.Errorf("created at = %v, want %v", loaded.CreatedAt, meta.CreatedAt)
	}
	if loaded.Settings != meta.Settings {
		t.Errorf("settings = %+v, want %+v", loaded.Settings, meta.Settings)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("an empty directory is not an initialized wall")
	}
	database, err := OpenDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	if Exists(dir) {
		t.Error("a wall without metadata is not initialized")
	}
	if err := database.SaveMeta(&Meta{Settings: DefaultSettings()}); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir) {
		t.Error("a wall with metadata must exist")
	}
}

// ---------------------------------------------------------------------------
// Codec
// ---------------------------------------------------------------------------

func TestCodecRoundTrip(t *testing.T) {
	chunk := paintedChunk(8)
	data, err := encodePixmap(chunk.Pixmap)
	if err != nil {
		t.Fatal(err)
	}
	pixmap, err := decodePixmap(data, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pixmap.Data(), chunk.Pixmap.Data()) {
		t.Error("decoded pixels differ from the encoded ones")
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	if _, err := decodePixmap([]byte("not a webp"), 8); err == nil {
		t.Error("expected an error for garbage data")
	}
}
