package wall

import "container/list"

// ---------------------------------------------------------------------------
// Chunk encoder cache
// ---------------------------------------------------------------------------

// ChunkEncoder caches encoded chunk images so that many clients scrolling
// over the same area do not re-encode the same pixels. Entries are keyed by
// position and validated against the chunk's revision, so painting
// invalidates them naturally. Eviction is LRU with a fixed entry bound.
type ChunkEncoder struct {
	limit   int
	entries map[ChunkPosition]*list.Element
	order   *list.List
}

type encoderEntry struct {
	position ChunkPosition
	revision uint64
	data     []byte
}

// NewChunkEncoder creates a cache holding at most limit encoded chunks.
func NewChunkEncoder(limit int) *ChunkEncoder {
	return &ChunkEncoder{
		limit:   limit,
		entries: make(map[ChunkPosition]*list.Element),
		order:   list.New(),
	}
}

// Encode returns the encoded image of a chunk, consulting the cache first.
// Blank chunks encode to nil.
func (e *ChunkEncoder) Encode(position ChunkPosition, chunk *Chunk) ([]byte, error) {
	if chunk == nil || chunk.Pixmap.Blank() {
		return nil, nil
	}
	if element, ok := e.entries[position]; ok {
		entry := element.Value.(*encoderEntry)
		if entry.revision == chunk.Revision {
			e.order.MoveToFront(element)
			return entry.data, nil
		}
		e.order.Remove(element)
		delete(e.entries, position)
	}

	data, err := encodePixmap(chunk.Pixmap)
	if err != nil {
		return nil, err
	}
	e.entries[position] = e.order.PushFront(&encoderEntry{
		position: position,
		revision: chunk.Revision,
		data:     data,
	})
	for e.order.Len() > e.limit {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.entries, oldest.Value.(*encoderEntry).position)
	}
	return data, nil
}
