package threadmap

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

const DefaultCap = 1024

// CreateFunc asks the backend for a fresh thread and returns its identifier.
type CreateFunc func(ctx context.Context) (string, error)

type binding struct {
	key      string
	threadID string
}

// Registry maps conversation keys to backend thread identifiers,
// creating the thread on first use. Concurrent first-use of the same key is
// collapsed through singleflight so a conversation never acquires two backend
// threads. Bindings are held in a bounded LRU; evicting one only costs the
// conversation its backend context, same as a process restart would.
type Registry struct {
	create CreateFunc
	group  singleflight.Group

	mu      sync.Mutex
	cap     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

func NewRegistry(capacity int, create CreateFunc) *Registry {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Registry{
		create:  create,
		cap:     capacity,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// ResolveOrCreate returns the thread bound to key, creating and binding one if
// none exists yet.
func (r *Registry) ResolveOrCreate(ctx context.Context, key string) (string, error) {
	if threadID, ok := r.lookup(key); ok {
		return threadID, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		// A concurrent caller may have won the race before we entered the group.
		if threadID, ok := r.lookup(key); ok {
			return threadID, nil
		}
		threadID, err := r.create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create backend thread: %w", err)
		}
		r.store(key, threadID)
		return threadID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Registry) lookup(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[key]
	if !ok {
		return "", false
	}
	r.order.MoveToFront(el)
	return el.Value.(*binding).threadID, true
}

func (r *Registry) store(key, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[key]; ok {
		r.order.MoveToFront(el)
		el.Value.(*binding).threadID = threadID
		return
	}
	r.entries[key] = r.order.PushFront(&binding{key: key, threadID: threadID})
	for len(r.entries) > r.cap {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.order.Remove(oldest)
		delete(r.entries, oldest.Value.(*binding).key)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
