// Package coalesce implements the request coalescer from spec.md §4.4/§9:
// "deduplicate concurrent identical requests; broadcast the single
// verification result to all waiters". golang.org/x/sync/singleflight's
// Group.Do is exactly that contract — one caller per key does the work,
// every other caller for the same key blocks and receives the same
// result — so this package is a thin, typed wrapper around it rather than
// a hand-rolled waiter-set map.
package coalesce

import "golang.org/x/sync/singleflight"

// Group deduplicates concurrent calls sharing the same key. T is the
// shared result type (in this notary, the (code, records) pair the target
// endpoint computes once per RequestKey and replays to every waiter).
type Group[T any] struct {
	g singleflight.Group
}

// Do starts fn for key if nothing is in flight for it, otherwise attaches
// to the in-flight call. The returned shared flag reports whether the
// caller joined someone else's call rather than starting its own — the
// target endpoint uses it to bump notary_coalesce_joins_total.
func (g *Group[T]) Do(key string, fn func() (T, error)) (result T, shared bool, err error) {
	// singleflight's own shared flag is also true for the caller that ran
	// fn whenever others joined it, so track whether fn ran in this call.
	started := false
	v, err, _ := g.g.Do(key, func() (interface{}, error) {
		started = true
		return fn()
	})
	shared = !started
	if casted, ok := v.(T); ok {
		result = casted
	}
	return result, shared, err
}
