package retrieval

import (
	"errors"
	"fmt"
)

// ErrUnknownMode marks an unsupported search mode. It is a client error and
// is rejected before any I/O is performed.
var ErrUnknownMode = errors.New("retrieval: unknown search mode")

// Mode is the closed set of supported search modes.
type Mode int

const (
	// ModeSemantic ranks chunks by vector similarity to the query embedding.
	ModeSemantic Mode = iota
	// ModeLexical ranks chunks by full-text keyword match; it never calls
	// the embedding provider.
	ModeLexical
	// ModeHybrid blends concurrent semantic and lexical sub-queries with
	// adaptive weighting.
	ModeHybrid
	// ModeTables searches classified medical tables instead of text chunks.
	ModeTables
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSemantic:
		return "semantic"
	case ModeLexical:
		return "lexical"
	case ModeHybrid:
		return "hybrid"
	case ModeTables:
		return "tables"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a wire name onto the mode enum. "keyword" is accepted as
// an alias for lexical for compatibility with older clients.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "semantic":
		return ModeSemantic, nil
	case "lexical", "keyword":
		return ModeLexical, nil
	case "hybrid":
		return ModeHybrid, nil
	case "tables", "medical_tables":
		return ModeTables, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
