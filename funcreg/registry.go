// Package funcreg implements the function registry: a call name hashes to
// a 32-bit id, under which an encode/decode/release triple is stored. The
// hash reuses hash/crc32, the same hash ConsistentHashBalancer uses for
// its ring keys (loadbalance/consistent_hash.go), repurposed here from
// "which node owns this key" to "which id names this call".
package funcreg

import (
	"hash/crc32"
	"narpc/codec"
	"narpc/narpcerr"
	"sync"
)

// EncodeFunc serializes v through w. Implementations are user-supplied and
// pluggable per wire format.
type EncodeFunc func(w *codec.Writer, v any) error

// DecodeFunc deserializes r into v.
type DecodeFunc func(r *codec.Reader, v any) error

// ReleaseFunc runs in release mode to free any dynamically allocated
// members of v that Decode populated. Nil is a valid no-op.
type ReleaseFunc func(v any)

// Entry is what Register stores under a call id.
type Entry struct {
	Name    string
	Encode  EncodeFunc
	Decode  DecodeFunc
	Release ReleaseFunc
}

// Registry maps call ids to Entry. The process-wide registry is a single
// runtime value, created by narpc.Init, held by the Runtime it returns, and
// mutated only between init and finalize.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint32]*Entry
	byName map[string]uint32
}

func New() *Registry {
	return &Registry{
		byID:   make(map[uint32]*Entry),
		byName: make(map[string]uint32),
	}
}

// Register hashes name to a 32-bit id and stores the encode/decode/release
// triple under it. A hash collision against a different name already
// registered is a fatal registration error.
func (r *Registry) Register(name string, enc EncodeFunc, dec DecodeFunc, rel ReleaseFunc) (uint32, error) {
	if name == "" || enc == nil || dec == nil {
		return 0, narpcerr.ErrInvalidParam
	}
	id := crc32.ChecksumIEEE([]byte(name))

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[id]; ok && existing.Name != name {
		return 0, narpcerr.Wrap(narpcerr.Fail, "call id hash collision between \""+existing.Name+"\" and \""+name+"\"")
	}
	r.byID[id] = &Entry{Name: name, Encode: enc, Decode: dec, Release: rel}
	r.byName[name] = id
	return id, nil
}

// Registered reports whether name is registered and, if so, its id.
func (r *Registry) Registered(name string) (bool, uint32) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return ok, id
}

// Lookup returns the Entry for a call id, or (nil, false) if absent.
func (r *Registry) Lookup(id uint32) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}
