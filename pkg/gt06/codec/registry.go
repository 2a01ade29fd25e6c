// Package codec implements the Protocol Codec (C2): the bidirectional
// mapping between a frame.Frame and a typed message.Message, plus the
// encoder for acknowledgement and command frames.
package codec

import (
	"sync"

	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
)

// Parser decodes the payload of one protocol number into a message body.
type Parser interface {
	ProtocolNumber() byte
	Parse(f frame.Frame) (message.Message, error)
	Name() string
}

// Registry dispatches a frame to the Parser registered for its protocol
// number. The zero value is not usable; use NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	parsers map[byte]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[byte]Parser)}
}

// Register adds p, keyed by its protocol number. A later registration for
// the same protocol number replaces the earlier one.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.ProtocolNumber()] = p
}

// Get returns the parser registered for protocol number b, if any.
func (r *Registry) Get(b byte) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[b]
	return p, ok
}

// Has reports whether a parser is registered for protocol number b.
func (r *Registry) Has(b byte) bool {
	_, ok := r.Get(b)
	return ok
}

// Count returns the number of registered parsers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers)
}

// DefaultRegistry returns a Registry pre-populated with every parser this
// package ships.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&loginParser{})
	r.Register(&heartbeatParser{})
	for _, p := range []byte{0x08, 0x12, 0x94} {
		r.Register(&locationParser{protocol: p})
	}
	r.Register(&lbsParser{})
	for _, p := range []byte{0x13, 0x1A} {
		r.Register(&statusParser{protocol: p})
	}
	r.Register(&stringParser{})
	r.Register(&alarmParser{})
	for _, p := range []byte{0x80, 0x8A} {
		r.Register(&commandResponseParser{protocol: p})
	}
	return r
}
