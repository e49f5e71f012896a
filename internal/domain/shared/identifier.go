package shared

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier prefixes per entity type.
const (
	PrefixStudent = "stu"
	PrefixScore   = "scr"
	PrefixExam    = "tst"
	PrefixAsset   = "tpic"
)

// EntropyLength is the number of random characters appended to every identifier.
const EntropyLength = 8

// IDGenerator produces prefixed, human-readable identifiers.
// Uniqueness is enforced by the store's unique constraints, not by the generator.
type IDGenerator struct {
	entropy func() string
}

// NewIDGenerator returns a generator backed by random UUIDs.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: randomToken}
}

// NewIDGeneratorWithEntropy returns a generator with a custom entropy source.
func NewIDGeneratorWithEntropy(entropy func() string) *IDGenerator {
	return &IDGenerator{entropy: entropy}
}

// Student returns stu_{term}_{entropy}.
func (g *IDGenerator) Student(term string) string {
	return join(PrefixStudent, term, g.entropy())
}

// Score returns scr_{term}_{entropy}.
func (g *IDGenerator) Score(term string) string {
	return join(PrefixScore, term, g.entropy())
}

// Exam returns tst_{term}_{subtype}_{entropy}.
func (g *IDGenerator) Exam(term, subtype string) string {
	return join(PrefixExam, term, subtype, g.entropy())
}

// Asset returns tpic_{term}_{subtype}_{entropy}.
func (g *IDGenerator) Asset(term, subtype string) string {
	return join(PrefixAsset, term, subtype, g.entropy())
}

func join(parts ...string) string {
	return strings.Join(parts, "_")
}

func randomToken() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:EntropyLength]
}
