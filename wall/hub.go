package wall

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rakugaki/rakugaki/id"
)

// ---------------------------------------------------------------------------
// Hub
// ---------------------------------------------------------------------------

// ErrInvalidWallID is returned for ids that are not well-formed wall ids.
var ErrInvalidWallID = fmt.Errorf("invalid wall id")

// Hub tracks the open walls: one broker per wall, created on first use.
// Wall ids are unguessable, so knowing one is what grants access; opening
// an id that was never used before simply creates that wall.
type Hub struct {
	wallsDir        string
	defaultSettings Settings
	brokerConfig    BrokerConfig

	mu      sync.Mutex
	brokers map[string]*Broker
}

// NewHub creates a hub storing walls under wallsDir.
func NewHub(wallsDir string, defaultSettings Settings, brokerConfig BrokerConfig) *Hub {
	return &Hub{
		wallsDir:        wallsDir,
		defaultSettings: defaultSettings,
		brokerConfig:    brokerConfig,
		brokers:         make(map[string]*Broker),
	}
}

// Create makes a brand new wall owned by a user.
func (h *Hub) Create(ownerUserID string) (*Broker, error) {
	return h.open(id.New("wall"), ownerUserID)
}

// Open returns the broker for a wall, starting it if needed.
func (h *Hub) Open(wallID, userID string) (*Broker, error) {
	if !id.Valid("wall", wallID) {
		return nil, ErrInvalidWallID
	}
	return h.open(wallID, userID)
}

func (h *Hub) open(wallID, ownerUserID string) (*Broker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if broker, ok := h.brokers[wallID]; ok {
		return broker, nil
	}

	dir := filepath.Join(h.wallsDir, wallID)
	existed := Exists(dir)
	database, err := OpenDatabase(dir)
	if err != nil {
		return nil, err
	}

	var meta *Meta
	if existed {
		meta, err = database.LoadMeta()
		if err != nil {
			return nil, err
		}
	} else {
		meta = &Meta{
			Owner:     ownerUserID,
			CreatedAt: time.Now().UTC(),
			Settings:  h.defaultSettings,
		}
		if err := database.SaveMeta(meta); err != nil {
			return nil, err
		}
		log.Infof("created wall %s", wallID)
	}

	broker := NewBroker(NewWall(wallID, meta.Settings, database), h.brokerConfig)
	h.brokers[wallID] = broker
	return broker, nil
}

// StopAll shuts every open wall down, flushing unsaved chunks.
func (h *Hub) StopAll() {
	h.mu.Lock()
	brokers := make([]*Broker, 0, len(h.brokers))
	for _, broker := range h.brokers {
		brokers = append(brokers, broker)
	}
	h.brokers = make(map[string]*Broker)
	h.mu.Unlock()

	for _, broker := range brokers {
		broker.Stop()
	}
}
