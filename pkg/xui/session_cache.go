package xui

import (
	"strconv"
	"sync"
	"time"

	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/utils"
)

type cachedSession struct {
	fingerprint string
	cookie      string
	expires     time.Time
}

// sessionCache keeps one panel session per server id. An entry only matches
// while the record's address and credentials are unchanged.
type sessionCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cachedSession
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedSession),
	}
}

func fingerprint(server *models.Server) string {
	return utils.HashKey(
		server.Host,
		strconv.Itoa(server.Port),
		NormalizeBasePath(server.WebBasePath),
		strconv.FormatBool(server.UseTLS),
		server.Username,
		server.Password,
	)
}

func (sc *sessionCache) get(server *models.Server) (string, bool) {
	sc.mu.RLock()
	entry, ok := sc.entries[server.ID]
	sc.mu.RUnlock()

	if !ok || entry.fingerprint != fingerprint(server) || !sc.now().Before(entry.expires) {
		return "", false
	}
	return entry.cookie, true
}

func (sc *sessionCache) put(server *models.Server, cookie string) {
	sc.mu.Lock()
	sc.entries[server.ID] = cachedSession{
		fingerprint: fingerprint(server),
		cookie:      cookie,
		expires:     sc.now().Add(sc.ttl),
	}
	sc.mu.Unlock()
}

func (sc *sessionCache) remove(serverID string) {
	sc.mu.Lock()
	delete(sc.entries, serverID)
	sc.mu.Unlock()
}

func (sc *sessionCache) len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.entries)
}
