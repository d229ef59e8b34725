// Package wall implements the infinite canvas: chunked pixel storage,
// painting, persistence, and the per-wall session broker.
package wall

import (
	"errors"
	"fmt"
	"math"

	"github.com/rakugaki/rakugaki/brush"
	"github.com/rakugaki/rakugaki/render"
)

// ---------------------------------------------------------------------------
// Chunk positions
// ---------------------------------------------------------------------------

// MaxChunkCoord bounds chunk coordinates to signed 24 bits. The canvas is
// conceptually infinite, but file names and the wire protocol want a finite
// coordinate space.
const MaxChunkCoord = 1<<23 - 1

// ChunkPosition addresses a chunk on the wall.
type ChunkPosition struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// InBounds reports whether the position is inside the coordinate space.
func (p ChunkPosition) InBounds() bool {
	return p.X >= -MaxChunkCoord && p.X <= MaxChunkCoord &&
		p.Y >= -MaxChunkCoord && p.Y <= MaxChunkCoord
}

func (p ChunkPosition) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ChunkAt returns the chunk containing the given wall pixel.
func ChunkAt(chunkSize int, x, y float32) ChunkPosition {
	return ChunkPosition{
		X: floorDiv(int32(math.Floor(float64(x))), int32(chunkSize)),
		Y: floorDiv(int32(math.Floor(float64(y))), int32(chunkSize)),
	}
}

// ---------------------------------------------------------------------------
// Chunks
// ---------------------------------------------------------------------------

// Chunk is one square tile of the wall. Revision increments on every paint;
// comparing it against the saved and encoded revisions drives autosave and
// the encoder cache.
type Chunk struct {
	Pixmap        *render.Pixmap
	Revision      uint64
	SavedRevision uint64
}

// NewChunk creates a transparent chunk.
func NewChunk(size int) *Chunk {
	return &Chunk{Pixmap: render.NewPixmap(size, size)}
}

// MarkModified bumps the revision after painting.
func (c *Chunk) MarkModified() { c.Revision++ }

// Modified reports whether the chunk changed since it was last saved.
func (c *Chunk) Modified() bool { return c.Revision != c.SavedRevision }

// ---------------------------------------------------------------------------
// Walls
// ---------------------------------------------------------------------------

// Settings are the per-wall constants. Every client must agree on them, so
// they are fixed at wall creation and sent on login.
type Settings struct {
	ChunkSize int `json:"chunkSize" toml:"chunk-size"`
	PaintArea int `json:"paintArea" toml:"paint-area"`
	MaxChunks int `json:"maxChunks" toml:"max-chunks"`
}

// DefaultSettings returns the settings new walls get.
func DefaultSettings() Settings {
	return Settings{ChunkSize: 168, PaintArea: 504, MaxChunks: 65536}
}

// ErrWallFull is returned when creating a chunk would exceed the wall's
// chunk cap.
var ErrWallFull = errors.New("wall is full")

// Wall is the in-memory state of one wall. It is owned by its broker
// goroutine and must not be shared.
type Wall struct {
	id       string
	settings Settings
	chunks   map[ChunkPosition]*Chunk
	database *Database
}

// NewWall creates a wall backed by a database. The database may be nil in
// tests; chunks then live in memory only.
func NewWall(wallID string, settings Settings, database *Database) *Wall {
	return &Wall{
		id:       wallID,
		settings: settings,
		chunks:   make(map[ChunkPosition]*Chunk),
		database: database,
	}
}

// ID returns the wall's id.
func (w *Wall) ID() string { return w.id }

// Settings returns the wall's settings.
func (w *Wall) Settings() Settings { return w.settings }

// EnsureChunk returns the chunk at a position, pulling it from disk if it
// was saved earlier. With create set, a missing chunk is created blank;
// otherwise nil means the chunk is (still) empty.
func (w *Wall) EnsureChunk(position ChunkPosition, create bool) (*Chunk, error) {
	if !position.InBounds() {
		return nil, fmt.Errorf("chunk position %s out of range", position)
	}
	if chunk, ok := w.chunks[position]; ok {
		return chunk, nil
	}
	if w.database != nil {
		chunk, err := w.database.LoadChunk(position, w.settings.ChunkSize)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			w.chunks[position] = chunk
			return chunk, nil
		}
	}
	if !create {
		return nil, nil
	}
	if w.settings.MaxChunks > 0 && len(w.chunks) >= w.settings.MaxChunks {
		return nil, ErrWallFull
	}
	chunk := NewChunk(w.settings.ChunkSize)
	w.chunks[position] = chunk
	return chunk, nil
}

// ModifiedChunks returns the positions of chunks with unsaved changes.
func (w *Wall) ModifiedChunks() []ChunkPosition {
	var positions []ChunkPosition
	for position, chunk := range w.chunks {
		if chunk.Modified() {
			positions = append(positions, position)
		}
	}
	return positions
}

// Plot evaluates a brush at a wall pixel and paints the result onto every
// chunk its paint area can touch. The paint area is a square centered on
// the point; scribbles outside it get clipped at the chunk borders.
func (w *Wall) Plot(b *brush.Brush, x, y float32) error {
	value, err := b.Eval()
	if err != nil {
		return err
	}

	half := float32(w.settings.PaintArea) / 2
	size := int32(w.settings.ChunkSize)
	topLeft := ChunkAt(w.settings.ChunkSize, x-half, y-half)
	bottomRight := ChunkAt(w.settings.ChunkSize, x+half-1, y+half-1)

	for cy := topLeft.Y; cy <= bottomRight.Y; cy++ {
		for cx := topLeft.X; cx <= bottomRight.X; cx++ {
			position := ChunkPosition{X: cx, Y: cy}
			chunk, err := w.EnsureChunk(position, true)
			if err != nil {
				return err
			}
			dx := x - float32(cx*size)
			dy := y - float32(cy*size)
			if err := b.RenderValue(chunk.Pixmap, value, dx, dy); err != nil {
				return err
			}
			chunk.MarkModified()
		}
	}
	return nil
}
