package tenant

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wappdesk/backend/internal/models"
	"gorm.io/gorm"
)

const cacheTTL = 5 * time.Minute

var ErrClientNotFound = errors.New("client not found")
var ErrClientInactive = errors.New("client is inactive")

type cachedClient struct {
	client    models.Client
	fetchedAt time.Time
}

// Registry resolves and caches tenant clients by id. Entries expire so that
// deactivating a client takes effect without a restart.
type Registry struct {
	db *gorm.DB

	mu      sync.RWMutex
	clients map[uuid.UUID]cachedClient
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db:      db,
		clients: make(map[uuid.UUID]cachedClient),
	}
}

// Resolve returns the active client for the given id, hitting the DB on a
// cache miss or expired entry.
func (r *Registry) Resolve(clientID uuid.UUID) (*models.Client, error) {
	r.mu.RLock()
	entry, ok := r.clients[clientID]
	r.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		if !entry.client.Active {
			return nil, ErrClientInactive
		}
		c := entry.client
		return &c, nil
	}

	var client models.Client
	if err := r.db.First(&client, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	r.mu.Lock()
	r.clients[clientID] = cachedClient{client: client, fetchedAt: time.Now()}
	r.mu.Unlock()

	if !client.Active {
		return nil, ErrClientInactive
	}
	return &client, nil
}

// Exists reports whether an active client with the id is known.
func (r *Registry) Exists(clientID uuid.UUID) bool {
	_, err := r.Resolve(clientID)
	return err == nil
}

// Invalidate drops a cached entry after a client update.
func (r *Registry) Invalidate(clientID uuid.UUID) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

// Count returns the number of active clients (used by the health endpoint).
func (r *Registry) Count() int64 {
	var n int64
	r.db.Model(&models.Client{}).Where("active = true").Count(&n)
	return n
}
