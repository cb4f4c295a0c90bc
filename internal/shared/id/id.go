// Package id provides identifier generation for the launcher core.
//
// Identifiers are prefixed ULIDs:
//   - Sortable: instances launched later compare greater
//   - Prefixed: inst_*, srf_* make logs and audit rows readable
//   - Typed: an InstanceID cannot be passed where a SurfaceID is expected
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies one launched application instance.
type InstanceID string

// SurfaceID identifies an in-process UI surface (editor buffer, embedded view).
type SurfaceID string

const (
	InstancePrefix = "inst"
	SurfacePrefix  = "srf"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropyMu sync.Mutex
	entropy   io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand in monotonic mode, so
// two ids minted in the same millisecond still differ and still sort.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewInstanceID generates a new instance id.
func NewInstanceID() InstanceID {
	return InstanceID(Default().GenerateWithPrefix(InstancePrefix))
}

// NewSurfaceID generates a new surface id.
func NewSurfaceID() SurfaceID {
	return SurfaceID(Default().GenerateWithPrefix(SurfacePrefix))
}

func (i InstanceID) String() string { return string(i) }
func (s SurfaceID) String() string  { return string(s) }

// ParseInstanceID validates the prefix and ULID body of s.
func ParseInstanceID(s string) (InstanceID, error) {
	prefix, body, ok := strings.Cut(s, "_")
	if !ok || prefix != InstancePrefix {
		return "", fmt.Errorf("invalid instance id %q: missing %s_ prefix", s, InstancePrefix)
	}
	if _, err := ulid.Parse(body); err != nil {
		return "", fmt.Errorf("invalid instance id %q: %w", s, err)
	}
	return InstanceID(s), nil
}

// Timestamp extracts the generation time from a prefixed id.
func Timestamp(s string) (time.Time, error) {
	_, body, ok := strings.Cut(s, "_")
	if !ok {
		body = s
	}
	parsed, err := ulid.Parse(body)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
