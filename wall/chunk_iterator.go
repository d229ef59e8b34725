package wall

// ---------------------------------------------------------------------------
// Chunk iterator
// ---------------------------------------------------------------------------

// ChunkIterator walks a rectangle of chunk positions in row-major order.
// Viewports can cover far more chunks than fit in one message, so the
// protocol pages through the iterator with TakeNext. An optional exclusion
// rectangle skips positions a client has already seen, which is how viewport
// moves stream only the chunks that just scrolled into view.
type ChunkIterator struct {
	topLeft     ChunkPosition
	bottomRight ChunkPosition
	cursor      ChunkPosition
	done        bool

	excluded    bool
	exclTopLeft ChunkPosition
	exclBottom  ChunkPosition
}

// NewChunkIterator iterates the inclusive rectangle between the two corners.
func NewChunkIterator(topLeft, bottomRight ChunkPosition) *ChunkIterator {
	done := topLeft.X > bottomRight.X || topLeft.Y > bottomRight.Y
	return &ChunkIterator{
		topLeft:     topLeft,
		bottomRight: bottomRight,
		cursor:      topLeft,
		done:        done,
	}
}

// Exclude skips every position inside the given inclusive rectangle.
// Must be called before the first TakeNext.
func (it *ChunkIterator) Exclude(topLeft, bottomRight ChunkPosition) {
	if topLeft.X > bottomRight.X || topLeft.Y > bottomRight.Y {
		return
	}
	it.excluded = true
	it.exclTopLeft = topLeft
	it.exclBottom = bottomRight
	it.skipExcluded()
}

func (it *ChunkIterator) inExclusion(p ChunkPosition) bool {
	return it.excluded &&
		p.X >= it.exclTopLeft.X && p.X <= it.exclBottom.X &&
		p.Y >= it.exclTopLeft.Y && p.Y <= it.exclBottom.Y
}

func (it *ChunkIterator) advance() {
	it.cursor.X++
	if it.cursor.X > it.bottomRight.X {
		it.cursor.X = it.topLeft.X
		it.cursor.Y++
		if it.cursor.Y > it.bottomRight.Y {
			it.done = true
		}
	}
}

func (it *ChunkIterator) skipExcluded() {
	for !it.done && it.inExclusion(it.cursor) {
		it.advance()
	}
}

// Done reports whether the iterator is exhausted.
func (it *ChunkIterator) Done() bool { return it.done }

// TakeNext returns up to n positions, advancing the iterator.
func (it *ChunkIterator) TakeNext(n int) []ChunkPosition {
	if it.done || n <= 0 {
		return nil
	}
	positions := make([]ChunkPosition, 0, n)
	for len(positions) < n && !it.done {
		positions = append(positions, it.cursor)
		it.advance()
		it.skipExcluded()
	}
	return positions
}
