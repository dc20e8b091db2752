// Package ident generates row identifiers.
package ident

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces identifiers for new rows.
type Generator interface {
	Generate() string
}

// TimeSeededV4 generates UUIDv4-shaped identifiers whose entropy comes from
// a source seeded with the wall clock and the monotonic clock reading at
// construction.
//
// The values are not cryptographically random and are not checked against
// the type of any primary key column.
//
// Thread-safety: TimeSeededV4 is safe for concurrent use.
type TimeSeededV4 struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// epoch anchors monotonic readings taken by NewTimeSeededV4.
var epoch = time.Now()

// NewTimeSeededV4 creates a generator seeded from the wall clock mixed with
// the monotonic time elapsed since the package was loaded.
func NewTimeSeededV4() *TimeSeededV4 {
	seed := time.Now().UnixNano() ^ int64(time.Since(epoch))<<20
	return &TimeSeededV4{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns a hyphenated UUID string with version 4 and the RFC 4122
// variant set.
//
// Panics if the random source fails (a math/rand source never does).
func (g *TimeSeededV4) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return uuid.Must(uuid.NewRandomFromReader(g.rnd)).String()
}

// Fixed returns predetermined identifiers for tests.
//
// Thread-safety: Fixed is safe for concurrent use.
type Fixed struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixed creates a generator that returns ids in order.
func NewFixed(ids ...string) *Fixed {
	return &Fixed{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed; the test asked for more rows than it
// planned for.
func (g *Fixed) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("ident: all fixed ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
