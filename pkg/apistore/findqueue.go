package apistore

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// findQueue deduplicates identical in-flight fetches. The first caller for a
// key runs the request; callers arriving before it settles wait for the same
// result, whether it succeeds or fails. The key is dropped once settled.
type findQueue struct {
	mu      sync.Mutex
	group   *singleflight.Group
	waiting map[string]int
	types   map[string]string
}

func newFindQueue() *findQueue {
	return &findQueue{
		group:   new(singleflight.Group),
		waiting: make(map[string]int),
		types:   make(map[string]string),
	}
}

// do runs fn once per key among concurrent callers. joined reports whether
// this caller attached to a request started by someone else. A caller whose
// ctx ends stops waiting with ctx.Err(); the request itself keeps running for
// the remaining waiters.
func (q *findQueue) do(ctx context.Context, key, typ string, fn func(context.Context) (any, error)) (val any, joined bool, err error) {
	q.mu.Lock()
	group := q.group
	q.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ran := false
	ch := group.DoChan(key, func() (any, error) {
		ran = true
		return fn(shared)
	})

	q.mu.Lock()
	q.waiting[key]++
	q.types[key] = typ
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		if q.waiting[key]--; q.waiting[key] <= 0 {
			delete(q.waiting, key)
			delete(q.types, key)
		}
		q.mu.Unlock()
	}()

	select {
	case res := <-ch:
		return res.Val, !ran, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Waiters returns the number of callers currently attached to in-flight
// requests.
func (q *findQueue) Waiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, c := range q.waiting {
		n += c
	}
	return n
}

// reset detaches every in-flight request: later callers start fresh ones.
func (q *findQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.group = new(singleflight.Group)
}

// forgetType detaches the in-flight requests issued for one type.
func (q *findQueue) forgetType(t string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key, typ := range q.types {
		if typ == t {
			q.group.Forget(key)
		}
	}
}

// queueKey canonicalizes headers (sorted names and values) and appends url.
func queueKey(h http.Header, url string) string {
	canon := make(map[string][]string, len(h))
	for k, values := range h {
		name := http.CanonicalHeaderKey(k)
		canon[name] = append(canon[name], values...)
	}
	names := make([]string, 0, len(canon))
	for name := range canon {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		values := append([]string(nil), canon[name]...)
		sort.Strings(values)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ";"))
	}
	b.WriteByte('}')
	b.WriteString(url)
	return b.String()
}
