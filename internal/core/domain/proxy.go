package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProxyEntry is one outbound proxy in the pool.
type ProxyEntry struct {
	ID         uuid.UUID  `json:"id"`
	Address    string     `json:"address"` // host:port
	Username   string     `json:"-"`
	Password   string     `json:"-"`
	Active     bool       `json:"active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// URL renders the proxy as a URL usable by http.Transport.
func (p *ProxyEntry) URL() string {
	if p.Username != "" {
		return "http://" + p.Username + ":" + p.Password + "@" + p.Address
	}
	return "http://" + p.Address
}
