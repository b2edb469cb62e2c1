package server

import (
	"context"
	"sync"
	"time"

	"github.com/debemdeboas/quill/internal/metrics"
	"github.com/debemdeboas/quill/internal/workspace"
	gocache "github.com/patrickmn/go-cache"
)

// Registry keeps one workspace per client id and drops it after ttl of
// inactivity.
type Registry struct {
	cache   *gocache.Cache
	factory *workspace.Factory

	mu       sync.Mutex
	building map[string]*build
}

// build is a workspace under construction that later callers for the same
// client wait on.
type build struct {
	done chan struct{}
	ws   *workspace.Workspace
	err  error
}

func NewRegistry(factory *workspace.Factory, ttl time.Duration) *Registry {
	c := gocache.New(ttl, ttl/2)
	c.OnEvicted(func(key string, _ interface{}) {
		metrics.Workspaces.Dec()
		serverLogger.Debug().Str("client_id", key).Msg("Workspace evicted")
	})
	return &Registry{cache: c, factory: factory, building: map[string]*build{}}
}

// Get returns the client's workspace, building one that resumes token when
// none is held. Builds for different clients run concurrently; concurrent
// calls for the same client share one build. A workspace whose session could
// not be resolved is not kept.
func (r *Registry) Get(ctx context.Context, clientID, token string) (*workspace.Workspace, error) {
	if ws, ok := r.cached(clientID); ok {
		return ws, nil
	}

	r.mu.Lock()
	if ws, ok := r.cached(clientID); ok {
		r.mu.Unlock()
		return ws, nil
	}
	if b, ok := r.building[clientID]; ok {
		r.mu.Unlock()
		select {
		case <-b.done:
			return b.ws, b.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b := &build{done: make(chan struct{})}
	r.building[clientID] = b
	r.mu.Unlock()

	b.ws, b.err = r.factory.New(ctx, token)
	if b.err != nil {
		b.ws = nil
	}

	r.mu.Lock()
	if b.err == nil {
		r.cache.SetDefault(clientID, b.ws)
		metrics.Workspaces.Inc()
		serverLogger.Debug().Str("client_id", clientID).Msg("Workspace created")
	}
	delete(r.building, clientID)
	r.mu.Unlock()
	close(b.done)

	return b.ws, b.err
}

// cached returns the held workspace and refreshes its expiry.
func (r *Registry) cached(clientID string) (*workspace.Workspace, bool) {
	x, found := r.cache.Get(clientID)
	if !found {
		return nil, false
	}
	ws := x.(*workspace.Workspace)
	r.cache.SetDefault(clientID, ws)
	return ws, true
}

func (r *Registry) Drop(clientID string) {
	r.cache.Delete(clientID)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
