// Package narpc is the top-level lifecycle facade: init/finalize,
// registration, forward/wait/wait_all/request_free, and error-to-string,
// wiring together the NAL packages (addr, opqueue, event, rma, tag,
// funcreg) and the RPC forwarding engine (engine) into a single runtime
// value: one value created by Init, destroyed by Finalize, with every
// entry point consuming it explicitly rather than reaching into package
// globals.
package narpc

import (
	"context"
	"time"

	"narpc/addr"
	"narpc/engine"
	"narpc/event"
	"narpc/funcreg"
	"narpc/loadbalance"
	"narpc/middleware"
	"narpc/narpcerr"
	"narpc/opqueue"
	"narpc/registry"
	"narpc/tag"
)

// VersionMajor/Minor/Patch identify this runtime build, in the same spirit
// as a small, boring top-level getter like loadbalance.Balancer.Name().
const (
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)

// Options configures a Runtime at Init time. There is no config file or
// env parsing — constructor injection only.
type Options struct {
	// Registry resolves peer names for addr.Book.Lookup. Required unless
	// the caller only ever uses addr.Book.Self / addresses constructed
	// directly.
	Registry registry.Registry

	// Balancer picks among multiple resolved instances for a name. A
	// RoundRobinBalancer is used if nil.
	Balancer loadbalance.Balancer

	// SelfURI, if set, pre-creates the loopback address.
	SelfURI string

	// MaxUnexpectedSize/MaxExpectedSize override the endpoint-reported
	// buffer sizes used by engine.Forward. Zero means "use the endpoint's
	// own maximum".
	MaxUnexpectedSize int
	MaxExpectedSize   int

	// Middlewares wraps every Call in this order (the first entry is the
	// outermost layer); see middleware.Chain. Forward/Wait remain usable
	// directly for callers that don't want the chain applied.
	Middlewares []middleware.Middleware
}

// Runtime is the single value created by Init and destroyed by Finalize;
// every entry point consumes it explicitly instead of relying on global
// mutable state.
type Runtime struct {
	initialized bool

	ep     event.Endpoint
	queues *opqueue.Queues
	book   *addr.Book
	ev     *event.Engine
	funcs  *funcreg.Registry
	tags   *tag.Generator
	rpc    *engine.RPC
	chain  middleware.Middleware
}

// Init binds a Runtime to ep. Mutation of process-wide state (function
// registry, tag counter, unexpected queues) is only permitted between
// Init and Finalize.
func Init(ep event.Endpoint, opts Options) (*Runtime, error) {
	if ep == nil {
		return nil, narpcerr.ErrInvalidParam
	}

	bal := opts.Balancer
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}

	queues := opqueue.New()
	book := addr.NewBook(opts.Registry, bal)
	if opts.SelfURI != "" {
		book.Self(opts.SelfURI)
	}
	ev := event.New(ep, queues, book)
	funcs := funcreg.New()
	tags := tag.New(tag.DeriveMaxTag(ep.MaxTag()))

	engOpts := engine.Options{
		MaxUnexpectedSize: opts.MaxUnexpectedSize,
		MaxExpectedSize:   opts.MaxExpectedSize,
	}
	if engOpts.MaxUnexpectedSize == 0 {
		engOpts.MaxUnexpectedSize = ep.MaxUnexpectedSize()
	}
	if engOpts.MaxExpectedSize == 0 {
		engOpts.MaxExpectedSize = ep.MaxExpectedSize()
	}

	return &Runtime{
		initialized: true,
		ep:          ep,
		queues:      queues,
		book:        book,
		ev:          ev,
		funcs:       funcs,
		tags:        tags,
		rpc:         engine.New(ev, funcs, tags, engOpts),
		chain:       middleware.Chain(opts.Middlewares...),
	}, nil
}

// Finalize tears down the runtime. It returns ProtocolError, without
// freeing anything twice, when the unexpected-op queue is still
// non-empty: a posted unexpected receive that never saw its arrival
// would otherwise leak silently.
func (rt *Runtime) Finalize() error {
	if !rt.initialized {
		return nil
	}
	if rt.ev.PendingUnexpectedOps() > 0 {
		return narpcerr.ErrProtocolError
	}
	rt.initialized = false
	return nil
}

// Initialized reports whether the runtime is between Init and Finalize.
func (rt *Runtime) Initialized() bool { return rt.initialized }

// VersionGet reports this runtime build's version.
func VersionGet() (major, minor, patch int) {
	return VersionMajor, VersionMinor, VersionPatch
}

// Book exposes the address book so callers can resolve peers (addr_lookup)
// or obtain the self address (addr_self).
func (rt *Runtime) Book() *addr.Book { return rt.book }

// Progress drains one event off the endpoint, exposed here since the
// event engine is otherwise internal to the Runtime.
func (rt *Runtime) Progress(timeout time.Duration) error {
	return rt.ev.Progress(timeout)
}

// Pump drains events in a loop for up to timeout, with the number of
// iterations per second capped by the event engine's limiter. Use
// this instead of a manual Progress loop when a goroutine's only job is
// to keep the runtime's event queue moving in the background.
func (rt *Runtime) Pump(timeout time.Duration) error {
	return rt.ev.Pump(timeout)
}

// Register binds name to an encode/decode/release triple and returns its
// call id.
func (rt *Runtime) Register(name string, enc funcreg.EncodeFunc, dec funcreg.DecodeFunc, rel funcreg.ReleaseFunc) (uint32, error) {
	return rt.funcs.Register(name, enc, dec, rel)
}

// Registered reports whether name is registered and, if so, its call id.
func (rt *Runtime) Registered(name string) (bool, uint32) {
	return rt.funcs.Registered(name)
}

// Forward issues a call to id against peer, encoding in and arranging for
// out to be decoded from the response.
func (rt *Runtime) Forward(peer *addr.Address, id uint32, in, out any) (*engine.Request, error) {
	return rt.rpc.Forward(peer, id, in, out)
}

// Wait blocks until req completes or timeout elapses.
func (rt *Runtime) Wait(req *engine.Request, timeout time.Duration) error {
	return rt.rpc.Wait(req, timeout)
}

// WaitAll waits on every request in reqs, returning one error per request.
func (rt *Runtime) WaitAll(reqs []*engine.Request, timeout time.Duration) []error {
	return rt.rpc.WaitAll(reqs, timeout)
}

// RequestFree releases req's resources once it has completed.
func (rt *Runtime) RequestFree(req *engine.Request) error {
	return rt.rpc.RequestFree(req)
}

// Call issues a single forward-then-wait round trip for id against peer
// through the middleware chain configured at Init (Options.Middlewares),
// freeing the underlying Request once it completes. With no configured
// middleware, this is equivalent to Forward followed by Wait and
// RequestFree.
func (rt *Runtime) Call(ctx context.Context, peer *addr.Address, id uint32, in, out any, timeout time.Duration) error {
	return rt.chain(middleware.FromCaller(rt, timeout))(ctx, peer, id, in, out)
}

// ErrorToString renders code as a human-readable string.
func ErrorToString(code narpcerr.Code) string {
	return narpcerr.ToString(code)
}
