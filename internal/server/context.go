package server

import (
	"sync"

	"github.com/shellbridge/shellbridge/internal/registry"
	"github.com/shellbridge/shellbridge/internal/result"
)

// connContext is the registry.Context handed to every handler invoked on
// behalf of one connection. It exposes the shared Hub plus
// connection-scoped subscription bookkeeping so the subscribe/unsubscribe
// built-ins can register and tear down interest without reaching into
// the transport layer.
type connContext struct {
	server     *Server
	remoteAddr string
	push       func(result.Message)

	mu      sync.Mutex
	subs    map[string]int64 // topic -> Hub subscription id
	started bool
}

func newConnContext(s *Server, remoteAddr string, push func(result.Message)) *connContext {
	return &connContext{
		server:     s,
		remoteAddr: remoteAddr,
		push:       push,
		subs:       make(map[string]int64),
	}
}

// Get implements registry.Context's service locator; "conn" returns this
// connContext itself, so the subscribe/unsubscribe handlers can
// recover it with a type assertion.
func (c *connContext) Get(key string) (any, bool) {
	switch key {
	case "conn":
		return c, true
	case "hub":
		return c.server.hub, true
	case "server":
		return c.server, true
	}
	return nil, false
}

func (c *connContext) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *connContext) GetConfig() map[string]any {
	return c.server.configMap()
}

func (c *connContext) GetContainer() any {
	return c.server
}

// Close releases every subscription this connection holds. Safe to call
// more than once.
func (c *connContext) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]int64)
	c.mu.Unlock()
	c.server.hub.UnsubscribeAll(subs)
}

func (c *connContext) addSub(topic string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = id
}

func (c *connContext) removeSub(topic string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	return id, ok
}

var _ registry.Context = (*connContext)(nil)
