// Package sandbox is the isolated definition scope: one yaegi interpreter per
// simulated platform version. Code defined in a sandbox lives in that
// interpreter only, so the same name defined in two sandboxes has two
// identities.
package sandbox

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"shadowbox/internal/intercept"
	"shadowbox/internal/loader"
)

var (
	// ErrEval is returned when the interpreter rejects a symbol's code.
	ErrEval = errors.New("sandbox evaluation failed")

	// ErrClosed is returned by a sandbox after Close.
	ErrClosed = errors.New("sandbox closed")
)

// Options configures a Sandbox.
type Options struct {
	// Scope names the sandbox in class origins and errors. Defaults to the ID.
	Scope string
	// Registry selects the shadow packages. Defaults to intercept.DefaultRegistry.
	Registry *intercept.Registry
	// Dispatcher receives intercepted calls. Defaults to a fresh dispatcher.
	Dispatcher *intercept.Dispatcher
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *zap.Logger
}

// Sandbox implements loader.Definer on top of a yaegi interpreter.
type Sandbox struct {
	*loader.Table

	id         uuid.UUID
	dispatcher *intercept.Dispatcher
	logger     *zap.Logger

	mu     sync.Mutex // guards interp and closed
	interp *interp.Interpreter
	closed bool
}

var _ loader.Definer = (*Sandbox)(nil)

// New creates an interpreter loaded with the standard library, the shadow
// packages of opts.Registry and the redirect runtime.
func New(opts Options) (*Sandbox, error) {
	id := uuid.New()
	scope := opts.Scope
	if scope == "" {
		scope = id.String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = intercept.DefaultRegistry()
	}
	disp := opts.Dispatcher
	if disp == nil {
		disp = intercept.NewDispatcher(logger)
	}

	i := interp.New(interp.Options{Stdout: opts.Stdout, Stderr: opts.Stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	shadows := StdlibShadows(reg, disp, logger)
	if err := i.Use(shadows); err != nil {
		return nil, fmt.Errorf("failed to load shadow packages: %w", err)
	}
	if err := i.Use(RedirectExports(disp, logger)); err != nil {
		return nil, fmt.Errorf("failed to load redirect runtime: %w", err)
	}

	logger.Debug("Sandbox created",
		zap.String("scope", scope),
		zap.String("id", id.String()),
		zap.Int("shadow_packages", len(shadows)))

	return &Sandbox{
		Table:      loader.NewTable(scope),
		id:         id,
		dispatcher: disp,
		logger:     logger,
		interp:     i,
	}, nil
}

// ID uniquely identifies the sandbox for its lifetime.
func (s *Sandbox) ID() uuid.UUID { return s.id }

// Dispatcher returns the dispatcher intercepted calls in this sandbox go to.
func (s *Sandbox) Dispatcher() *intercept.Dispatcher { return s.dispatcher }

// Define evaluates def.Code in the interpreter and records the class. A name
// already defined is rejected before any code runs.
func (s *Sandbox) Define(def loader.Definition) (*loader.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.Reserve(def.Name); err != nil {
		return nil, err
	}
	if _, err := s.interp.Eval(string(def.Code)); err != nil {
		s.logger.Warn("Evaluation failed", zap.String("name", string(def.Name)), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrEval, def.Name, err)
	}

	c := loader.NewClass(def, s.Scope(), &binding{s: s})
	if err := s.Add(c); err != nil {
		return nil, err
	}
	s.logger.Debug("Defined class",
		zap.String("name", string(def.Name)),
		zap.String("scope", s.Scope()),
		zap.Bool("instrumented", def.Instrumented))
	return c, nil
}

// Eval evaluates src in the sandbox's interpreter.
func (s *Sandbox) Eval(src string) (reflect.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return reflect.Value{}, ErrClosed
	}
	v, err := s.interp.Eval(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrEval, err)
	}
	return v, nil
}

// Close releases the interpreter. Function values looked up before Close keep
// working; Define, Eval and Class.Lookup fail with ErrClosed afterwards.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.interp = nil
	s.logger.Debug("Sandbox closed", zap.String("scope", s.Scope()))
	return nil
}

// binding resolves identifiers of classes defined in this sandbox. Every
// symbol's code is package main, so identifiers live in main.
type binding struct {
	s *Sandbox
}

func (b *binding) Lookup(ident string) (reflect.Value, error) {
	return b.s.Eval("main." + ident)
}
