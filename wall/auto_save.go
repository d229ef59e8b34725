package wall

import (
	"github.com/tliron/commonlog"

	"github.com/rakugaki/rakugaki/render"
)

var log = commonlog.GetLogger("wall")

// ---------------------------------------------------------------------------
// Autosave
// ---------------------------------------------------------------------------

// autoSaver writes chunks to disk off the broker goroutine. The broker hands
// it pixmap snapshots, so painting never waits on the filesystem. Each
// successful write is confirmed back on the saved channel; a chunk only
// counts as clean once its write confirmation arrives, so a failed or lost
// write leaves it dirty and it gets retried on the next tick.
type autoSaver struct {
	database *Database
	jobs     chan saveJob
	saved    chan saveResult
	done     chan struct{}
}

type saveJob struct {
	position ChunkPosition
	revision uint64
	pixmap   *render.Pixmap
}

type saveResult struct {
	position ChunkPosition
	revision uint64
}

func newAutoSaver(database *Database, queueSize int) *autoSaver {
	s := &autoSaver{
		database: database,
		jobs:     make(chan saveJob, queueSize),
		saved:    make(chan saveResult, queueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *autoSaver) run() {
	defer close(s.done)
	for job := range s.jobs {
		chunk := &Chunk{Pixmap: job.pixmap}
		if err := s.database.SaveChunk(job.position, chunk); err != nil {
			log.Errorf("saving chunk %s: %v", job.position, err)
			continue
		}
		select {
		case s.saved <- saveResult{position: job.position, revision: job.revision}:
		default:
			// Dropping a confirmation only means the chunk stays dirty and
			// gets written again later.
		}
	}
}

// enqueue hands a snapshot to the saver, reporting whether there was room.
// A full queue just means the chunk stays dirty until the next tick.
func (s *autoSaver) enqueue(job saveJob) bool {
	select {
	case s.jobs <- job:
		return true
	default:
		return false
	}
}

// stop drains the queue and waits for outstanding writes.
func (s *autoSaver) stop() {
	close(s.jobs)
	<-s.done
}
