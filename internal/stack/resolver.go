// Package stack expands prefix-linked stack records into call paths.
package stack

import (
	"frametrace/internal/gecko"
)

// Resolver expands the stack indices of one thread into root→leaf call
// paths. Results are cached; callers must not modify returned slices.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	thread *gecko.Thread
	cache  map[int][]string
	hits   int
	misses int
}

// NewResolver returns a resolver bound to thread
func NewResolver(thread *gecko.Thread) *Resolver {
	return &Resolver{
		thread: thread,
		cache:  make(map[int][]string),
	}
}

// Thread returns the thread the resolver reads from
func (r *Resolver) Thread() *gecko.Thread {
	return r.thread
}

// Resolve returns the frame labels from root to leaf for a stack index.
// Absent, out-of-range, or cyclic references resolve to an empty path.
func (r *Resolver) Resolve(index int) []string {
	if path, ok := r.cache[index]; ok {
		r.hits++
		return path
	}
	r.misses++
	path := r.walk(index)
	r.cache[index] = path
	return path
}

// Leaf returns the innermost frame label of a stack, or "" when it has none.
func (r *Resolver) Leaf(index int) string {
	path := r.Resolve(index)
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

// Stats reports cache hits and misses
func (r *Resolver) Stats() (hits, misses int) {
	return r.hits, r.misses
}

func (r *Resolver) walk(index int) []string {
	table := r.thread.StackTable
	seen := make(map[int]struct{})
	var leafFirst []string

	for cur := index; cur != gecko.NoStack; {
		if cur < 0 || cur >= len(table) {
			return []string{}
		}
		if _, dup := seen[cur]; dup {
			return []string{}
		}
		seen[cur] = struct{}{}

		// Interior prefixes are usually cached already; splice them in.
		if cur != index {
			if prefix, ok := r.cache[cur]; ok {
				if len(prefix) == 0 {
					return []string{}
				}
				path := make([]string, 0, len(prefix)+len(leafFirst))
				path = append(path, prefix...)
				return appendReversed(path, leafFirst)
			}
		}

		rec := table[cur]
		leafFirst = append(leafFirst, r.thread.Label(rec.Frame))
		cur = rec.Prefix
	}

	return appendReversed(make([]string, 0, len(leafFirst)), leafFirst)
}

func appendReversed(dst, leafFirst []string) []string {
	for i := len(leafFirst) - 1; i >= 0; i-- {
		dst = append(dst, leafFirst[i])
	}
	return dst
}

// Set holds one Resolver per thread of a profile, keyed by thread position.
// Resolvers of different threads may be used concurrently.
type Set struct {
	resolvers []*Resolver
}

// NewSet builds resolvers for every thread of the profile
func NewSet(profile *gecko.Profile) *Set {
	s := &Set{resolvers: make([]*Resolver, len(profile.Threads))}
	for i := range profile.Threads {
		s.resolvers[i] = NewResolver(&profile.Threads[i])
	}
	return s
}

// For returns the resolver of the thread at position i
func (s *Set) For(i int) *Resolver {
	if i < 0 || i >= len(s.resolvers) {
		return nil
	}
	return s.resolvers[i]
}

// Lookup returns the resolver of the first thread called name.
func (s *Set) Lookup(name string) (*Resolver, bool) {
	for _, r := range s.resolvers {
		if r.thread.Name == name {
			return r, true
		}
	}
	return nil, false
}
