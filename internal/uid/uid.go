// Package uid generates node identifiers.
//
// All generators are plain values handed to whoever creates nodes; there is
// no process-wide instance. Randomised generators draw from an injected
// source so a fixed seed yields a fixed identifier sequence.
package uid

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces identifiers that are unique for the generator's
// lifetime.
type Generator interface {
	Next() string
}

// Intn is the slice of a random source the token generator needs.
type Intn interface {
	IntN(n int) int
}

// Sequential issues prefix1, prefix2, ... in order.
//
// Thread-safety: Sequential is safe for concurrent use (atomic counter).
type Sequential struct {
	prefix string
	seq    atomic.Int64
}

// NewSequential creates a sequential generator. The first call to Next
// returns prefix + "1".
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// Next returns the next identifier.
func (g *Sequential) Next() string {
	return fmt.Sprintf("%s%d", g.prefix, g.seq.Add(1))
}

// TokenCharset is the alphabet random tokens are drawn from.
const TokenCharset = "0123456789ABCDEF"

// DefaultTokenLength is the token length used by NewToken.
const DefaultTokenLength = 8

// Token issues random fixed-length hex tokens, redrawing on collision with
// anything it issued before.
type Token struct {
	rng    Intn
	length int
	issued map[string]struct{}
}

// NewToken creates a token generator of DefaultTokenLength.
func NewToken(rng Intn) *Token {
	return newTokenLength(rng, DefaultTokenLength)
}

func newTokenLength(rng Intn, length int) *Token {
	if length < 1 {
		length = DefaultTokenLength
	}
	return &Token{rng: rng, length: length, issued: make(map[string]struct{})}
}

// Next returns a token not issued before by this generator.
func (g *Token) Next() string {
	buf := make([]byte, g.length)
	for {
		for i := range buf {
			buf[i] = TokenCharset[g.rng.IntN(len(TokenCharset))]
		}
		tok := string(buf)
		if _, dup := g.issued[tok]; !dup {
			g.issued[tok] = struct{}{}
			return tok
		}
	}
}

// UUID issues random (version 4) UUIDs read from r. With a seeded reader the
// sequence is reproducible.
type UUID struct {
	r io.Reader
}

// NewUUID creates a UUID generator over r.
func NewUUID(r io.Reader) *UUID {
	return &UUID{r: r}
}

// Next returns the next UUID as a hyphenated string.
//
// Panics if the reader fails, which a seeded source never does.
func (g *UUID) Next() string {
	return uuid.Must(uuid.NewRandomFromReader(g.r)).String()
}

// Fixed returns predetermined identifiers for tests.
//
// Thread-safety: Fixed is safe for concurrent use via internal mutex.
type Fixed struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixed creates a generator that returns ids in order.
func NewFixed(ids ...string) *Fixed {
	return &Fixed{ids: ids}
}

// Next returns the next predetermined id.
//
// Panics once all ids are consumed, so a test that creates more nodes than
// it planned for fails loudly.
func (g *Fixed) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("uid.Fixed: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Replay returns recorded identifiers first and then defers to another
// generator. It is used to rebuild a saved tree with its original uids
// while still allowing new nodes afterwards.
type Replay struct {
	mu   sync.Mutex
	ids  []string
	then Generator
}

// NewReplay creates a generator that issues ids in order, then delegates to
// then. A nil then panics once the ids run out, as Fixed does.
func NewReplay(ids []string, then Generator) *Replay {
	return &Replay{ids: slices.Clone(ids), then: then}
}

// Next returns the next recorded id, or then's next id.
func (g *Replay) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	if g.then == nil {
		panic("uid.Replay: recorded ids exhausted")
	}
	return g.then.Next()
}

// Kind names a generator for configuration.
type Kind string

const (
	KindSequential Kind = "sequential"
	KindToken      Kind = "token"
	KindUUID       Kind = "uuid"
)

// Kinds lists the accepted generator kinds.
var Kinds = []Kind{KindSequential, KindToken, KindUUID}

// Source is what the randomised generators draw from.
type Source interface {
	Intn
	io.Reader
}

// New builds a generator of the given kind over src.
func New(kind Kind, src Source) (Generator, error) {
	switch kind {
	case KindSequential, "":
		return NewSequential("n"), nil
	case KindToken:
		return NewToken(src), nil
	case KindUUID:
		return NewUUID(src), nil
	}
	return nil, fmt.Errorf("unknown uid generator %q: must be one of %v", kind, Kinds)
}
