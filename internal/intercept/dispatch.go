package intercept

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"shadowbox/internal/symbol"
)

// Invocation is one redirected call.
type Invocation struct {
	Owner    symbol.Name
	Method   string
	Receiver interface{}
	Args     []interface{}
}

// Ref returns the named MethodRef the call targets.
func (inv *Invocation) Ref() MethodRef { return Ref(inv.Owner, inv.Method) }

// Signature returns the slash form of the call target.
func (inv *Invocation) Signature() string { return inv.Ref().Signature() }

// Handler decides the behavior of a redirected call and returns its results.
// A nil result stands for the zero value of the corresponding return type.
type Handler func(inv *Invocation) []interface{}

// Dispatcher routes redirected calls to runtime-registered handlers. Each
// isolated scope owns its own Dispatcher, so handlers never leak across
// simulated platform versions.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[MethodRef]Handler
	calls    map[MethodRef]int
	logger   *zap.Logger
}

// NewDispatcher creates an empty dispatcher. A nil logger discards output.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[MethodRef]Handler),
		calls:    make(map[MethodRef]int),
		logger:   logger,
	}
}

// Handle registers h for ref, replacing any previous handler. A wildcard ref
// catches every method of its owner that has no exact handler.
func (d *Dispatcher) Handle(ref MethodRef, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNil, ref)
	}
	d.mu.Lock()
	d.handlers[ref] = h
	d.mu.Unlock()

	d.logger.Debug("Registered intercept handler", zap.String("ref", ref.String()))
	return nil
}

// Remove drops the handler for ref, if any.
func (d *Dispatcher) Remove(ref MethodRef) {
	d.mu.Lock()
	delete(d.handlers, ref)
	d.mu.Unlock()
}

// Lookup finds the handler for owner.method: exact first, then wildcard.
func (d *Dispatcher) Lookup(owner symbol.Name, method string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[Ref(owner, method)]; ok {
		return h, true
	}
	h, ok := d.handlers[All(owner)]
	return h, ok
}

// Redirect counts the call and runs its handler. ok is false when no handler
// is registered, in which case the caller runs its own code.
func (d *Dispatcher) Redirect(inv *Invocation) (results []interface{}, ok bool) {
	d.mu.Lock()
	d.calls[inv.Ref()]++
	d.mu.Unlock()

	h, ok := d.Lookup(inv.Owner, inv.Method)
	if !ok {
		return nil, false
	}
	return h(inv), true
}

// Invoke runs the handler for inv, or original when none is registered.
func (d *Dispatcher) Invoke(inv *Invocation, original func() []interface{}) []interface{} {
	if results, ok := d.Redirect(inv); ok {
		return results
	}
	if original == nil {
		return nil
	}
	return original()
}

// Calls returns how many times owner.method went through the dispatcher.
func (d *Dispatcher) Calls(owner symbol.Name, method string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.calls[Ref(owner, method)]
}

// Reset drops every handler and call count.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.handlers = make(map[MethodRef]Handler)
	d.calls = make(map[MethodRef]int)
	d.mu.Unlock()
}
