package wall

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// On-disk wall layout
// ---------------------------------------------------------------------------

// A wall's directory holds wall.toml with its metadata and a chunks/ tree
// with one lossless WebP per non-blank chunk. Chunk files fan out into 256
// hash-named shards so a big wall does not pile a million files into one
// directory.

// Meta is what wall.toml stores.
type Meta struct {
	Owner     string    `toml:"owner"`
	CreatedAt time.Time `toml:"created-at"`
	Settings  Settings  `toml:"settings"`
}

// Database reads and writes one wall's directory.
type Database struct {
	dir string
}

// OpenDatabase opens (creating if needed) a wall directory.
func OpenDatabase(dir string) (*Database, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chunks"), 0o755); err != nil {
		return nil, fmt.Errorf("create wall directory: %w", err)
	}
	return &Database{dir: dir}, nil
}

// Exists reports whether a wall directory has been initialized.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "wall.toml"))
	return err == nil
}

func (d *Database) metaPath() string {
	return filepath.Join(d.dir, "wall.toml")
}

// SaveMeta writes wall.toml.
func (d *Database) SaveMeta(meta *Meta) error {
	tmp := d.metaPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("save wall metadata: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		return fmt.Errorf("save wall metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, d.metaPath())
}

// LoadMeta reads wall.toml.
func (d *Database) LoadMeta() (*Meta, error) {
	var meta Meta
	if _, err := toml.DecodeFile(d.metaPath(), &meta); err != nil {
		return nil, fmt.Errorf("load wall metadata: %w", err)
	}
	return &meta, nil
}

func (d *Database) chunkPath(position ChunkPosition) string {
	name := fmt.Sprintf("%d,%d", position.X, position.Y)
	h := fnv.New32a()
	h.Write([]byte(name))
	shard := fmt.Sprintf("%02x", h.Sum32()%256)
	return filepath.Join(d.dir, "chunks", shard, name+".webp")
}

// SaveChunk persists a chunk. Chunks that have become fully transparent are
// deleted instead; a missing file and a blank chunk mean the same thing.
func (d *Database) SaveChunk(position ChunkPosition, chunk *Chunk) error {
	path := d.chunkPath(position)
	if chunk.Pixmap.Blank() {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	data, err := encodePixmap(chunk.Pixmap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadChunk reads a chunk from disk. It returns (nil, nil) when the chunk
// was never painted. A corrupt file is logged and treated the same as a
// missing one; losing one chunk must not take the whole wall down with it.
func (d *Database) LoadChunk(position ChunkPosition, size int) (*Chunk, error) {
	data, err := os.ReadFile(d.chunkPath(position))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("reading chunk %s: %v", position, err)
		return nil, nil
	}
	pixmap, err := decodePixmap(data, size)
	if err != nil {
		log.Errorf("corrupt chunk %s: %v", position, err)
		return nil, nil
	}
	return &Chunk{Pixmap: pixmap}, nil
}
