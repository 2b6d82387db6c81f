package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// ClientID identifies a browser client: a client-supplied session token or the
// request's network origin.
type ClientID string

// ThreadOpener creates a new, empty conversation thread upstream.
type ThreadOpener interface {
	OpenThread(ctx context.Context) (string, error)
}

// Registry binds clients to conversation threads. A client has at most one
// live binding. Bindings live until Reset, Replace, idle expiry (when a TTL is
// set) or Close.
type Registry struct {
	opener   ThreadOpener
	bindings *cache.Cache
	ttl      time.Duration
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewRegistry creates a registry. A ttl of zero keeps bindings for the life of
// the process; a positive ttl expires bindings that have not been used for that
// long.
func NewRegistry(opener ThreadOpener, ttl time.Duration, logger *slog.Logger) *Registry {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl
	}
	return &Registry{
		opener:   opener,
		bindings: cache.New(expiration, cleanup),
		ttl:      ttl,
		logger:   logger,
	}
}

// Bind returns the thread bound to client, opening and binding a new thread
// on first contact. Concurrent first contacts for the same client share one
// thread creation.
func (r *Registry) Bind(ctx context.Context, client ClientID) (string, error) {
	if id, ok := r.touch(client); ok {
		return id, nil
	}

	v, err, _ := r.inflight.Do(string(client), func() (any, error) {
		if id, ok := r.Lookup(client); ok {
			return id, nil
		}
		// Shared by every waiter on this key, so one caller's cancellation
		// must not fail the others.
		id, err := r.opener.OpenThread(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		// A Replace that landed while the thread was opening wins.
		if err := r.bindings.Add(string(client), id, cache.DefaultExpiration); err != nil {
			if current, ok := r.Lookup(client); ok {
				r.logger.Info("session already rebound, discarding opened thread", "client", client, "thread_id", id, "bound_thread_id", current)
				return current, nil
			}
			r.bindings.Set(string(client), id, cache.DefaultExpiration)
		}
		r.logger.Info("session bound", "client", client, "thread_id", id)
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("bind session: %w", err)
	}
	return v.(string), nil
}

// Lookup returns the thread bound to client without creating one.
func (r *Registry) Lookup(client ClientID) (string, bool) {
	v, ok := r.bindings.Get(string(client))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Replace binds client to threadID, discarding any previous binding.
func (r *Registry) Replace(client ClientID, threadID string) {
	r.bindings.Set(string(client), threadID, cache.DefaultExpiration)
	r.logger.Info("session rebound", "client", client, "thread_id", threadID)
}

// Reset discards the binding for client, if any.
func (r *Registry) Reset(client ClientID) {
	r.bindings.Delete(string(client))
	r.logger.Info("session reset", "client", client)
}

// Len reports the number of live bindings.
func (r *Registry) Len() int {
	return r.bindings.ItemCount()
}

// Close drops every binding.
func (r *Registry) Close() {
	r.bindings.Flush()
}

// touch looks up client and, when bindings expire, restarts its idle clock.
func (r *Registry) touch(client ClientID) (string, bool) {
	id, ok := r.Lookup(client)
	if ok && r.ttl > 0 {
		r.bindings.Set(string(client), id, cache.DefaultExpiration)
	}
	return id, ok
}
