package action

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CorrelationRegistry maps outstanding agent correlation ids to the node
// that is waiting on them. Entries expire after the configured ttl so a
// crashed agent cannot pin a node forever.
type CorrelationRegistry struct {
	cache *gocache.Cache
}

func NewCorrelationRegistry(ttl time.Duration) *CorrelationRegistry {
	return &CorrelationRegistry{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

const nodeKeyPrefix = "node:"

func (r *CorrelationRegistry) Register(correlationId string, nodeId string) {
	r.cache.SetDefault(correlationId, nodeId)
	r.cache.SetDefault(nodeKeyPrefix+nodeId, correlationId)
}

// Claim resolves a correlation id to its node and removes it, so a second
// result with the same id is rejected as a duplicate.
func (r *CorrelationRegistry) Claim(correlationId string) (string, bool) {
	v, ok := r.cache.Get(correlationId)
	if !ok {
		return "", false
	}
	nodeId := v.(string)
	r.cache.Delete(correlationId)
	r.cache.Delete(nodeKeyPrefix + nodeId)
	return nodeId, true
}

// ReleaseNode drops a node's pending correlation without resolving it, so a
// late agent result for a closed task is rejected as unknown.
func (r *CorrelationRegistry) ReleaseNode(nodeId string) {
	v, ok := r.cache.Get(nodeKeyPrefix + nodeId)
	if !ok {
		return
	}
	r.cache.Delete(v.(string))
	r.cache.Delete(nodeKeyPrefix + nodeId)
}
