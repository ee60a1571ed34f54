// Package loader implements the isolated loader: for every requested name it
// picks a provider, produces (and caches) possibly rewritten code, and defines
// the symbol in the isolated scope.
package loader

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shadowbox/internal/intercept"
	"shadowbox/internal/policy"
	"shadowbox/internal/symbol"
	"shadowbox/internal/translate"
)

// Options configures a Loader. Host, Source, Discovery, Transform and Definer
// are required; the policies, registry and translations default to the stock
// tables.
type Options struct {
	Host      Provider
	Source    Source
	Discovery Discovery
	Transform Transform
	Definer   Definer

	Acquisition     *policy.Acquisition
	Instrumentation *policy.Instrumentation
	Registry        *intercept.Registry
	Translations    *translate.Map

	// IsolatedResources are searched first by the resource lookups.
	IsolatedResources []fs.FS
	// InfrastructureResources is the fallback: the scope the loader itself
	// lives in, not the host.
	InfrastructureResources fs.FS

	Logger *zap.Logger
}

// Loader is one isolated scope's loader. It owns its CodeCache; neither is
// ever shared with another scope.
type Loader struct {
	host      Provider
	source    Source
	discovery Discovery
	transform Transform
	definer   Definer

	acquisition     *policy.Acquisition
	instrumentation *policy.Instrumentation
	registry        *intercept.Registry
	translations    translate.Map

	isolated       []fs.FS
	infrastructure fs.FS

	cache    *CodeCache
	defining singleflight.Group
	logger   *zap.Logger
}

// New validates opts and returns a loader with a fresh cache.
func New(opts Options) (*Loader, error) {
	switch {
	case opts.Host == nil:
		return nil, fmt.Errorf("%w: host provider", ErrMissingCollaborator)
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: byte-code source", ErrMissingCollaborator)
	case opts.Discovery == nil:
		return nil, fmt.Errorf("%w: discovery", ErrMissingCollaborator)
	case opts.Transform == nil:
		return nil, fmt.Errorf("%w: transform", ErrMissingCollaborator)
	case opts.Definer == nil:
		return nil, fmt.Errorf("%w: definer", ErrMissingCollaborator)
	}

	l := &Loader{
		host:            opts.Host,
		source:          opts.Source,
		discovery:       opts.Discovery,
		transform:       opts.Transform,
		definer:         opts.Definer,
		acquisition:     opts.Acquisition,
		instrumentation: opts.Instrumentation,
		registry:        opts.Registry,
		translations:    translate.Default(),
		isolated:        opts.IsolatedResources,
		infrastructure:  opts.InfrastructureResources,
		cache:           NewCodeCache(),
		logger:          opts.Logger,
	}
	if l.acquisition == nil || l.instrumentation == nil {
		rules := policy.DefaultRules()
		if l.acquisition == nil {
			l.acquisition = policy.NewAcquisition(rules)
		}
		if l.instrumentation == nil {
			l.instrumentation = policy.NewInstrumentation(rules)
		}
	}
	if l.registry == nil {
		l.registry = intercept.DefaultRegistry()
	}
	if opts.Translations != nil {
		l.translations = *opts.Translations
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l, nil
}

// Cache exposes the loader's code cache.
func (l *Loader) Cache() *CodeCache { return l.cache }

// Load returns the class for name, defining it in the isolated scope when the
// acquisition policy says so. The translated name is the one decided on,
// produced and defined. Symbols the code requires are loaded first.
func (l *Loader) Load(name symbol.Name) (*Class, error) {
	return l.load(name, nil)
}

// load carries the chain of local symbols waiting on name's definition, so a
// require cycle fails instead of waiting on itself.
func (l *Loader) load(name symbol.Name, chain []symbol.Name) (*Class, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	target := l.translations.Translate(name)
	decision, rule := l.acquisition.Explain(target)
	l.logger.Debug("Acquisition decided",
		zap.String("name", string(name)),
		zap.String("target", string(target)),
		zap.Stringer("decision", decision),
		zap.Stringer("rule", rule))

	if decision == policy.DelegateHost {
		// Delegation failures are propagated unchanged.
		return l.host.LoadClass(target)
	}

	if c, ok := l.definer.Defined(target); ok {
		return c, nil
	}
	for i, n := range chain {
		if n == target {
			cycle := append(append([]symbol.Name(nil), chain[i:]...), target)
			return nil, &CycleError{Chain: cycle}
		}
	}

	entry, hit, err := l.cache.GetOrProduce(target, func() (Entry, error) {
		return l.produce(target)
	})
	if errors.Is(err, ErrSymbolNotFound) {
		return l.hostFallback(target)
	}
	if err != nil {
		return nil, err
	}

	if len(entry.Requires) > 0 {
		next := append(append(make([]symbol.Name, 0, len(chain)+1), chain...), target)
		for _, dep := range entry.Requires {
			if _, err := l.load(dep, next); err != nil {
				return nil, fmt.Errorf("load %s required by %s: %w", dep, target, err)
			}
		}
	}

	v, err, _ := l.defining.Do(string(target), func() (interface{}, error) {
		if c, ok := l.definer.Defined(target); ok {
			return c, nil
		}
		return l.define(target, entry, hit)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Class), nil
}

// hostFallback gives the parent a chance when there is no local code, as with
// any delegating loader. Only a second miss is a missing symbol.
func (l *Loader) hostFallback(name symbol.Name) (*Class, error) {
	c, err := l.host.LoadClass(name)
	if err == nil {
		l.logger.Debug("No local code, served by host", zap.String("name", string(name)))
		return c, nil
	}
	if errors.Is(err, ErrSymbolNotFound) {
		return nil, &SymbolNotFoundError{Name: name}
	}
	return nil, err
}

func (l *Loader) define(name symbol.Name, entry Entry, hit bool) (*Class, error) {
	c, err := l.definer.Define(Definition{
		Name:         name,
		Code:         entry.Code,
		Instrumented: entry.Instrumented,
		Stubbed:      entry.Stubbed,
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Defined symbol",
		zap.String("name", string(name)),
		zap.Bool("cache_hit", hit),
		zap.Bool("instrumented", entry.Instrumented),
		zap.Int("requires", len(entry.Requires)))
	return c, nil
}

// produce reads raw code and rewrites it when the instrumentation policy
// selects the symbol.
func (l *Loader) produce(name symbol.Name) (Entry, error) {
	raw, err := l.source.Bytes(name)
	if err != nil {
		return Entry{}, err
	}

	desc, err := l.discovery.Describe(name, raw)
	if err != nil {
		return Entry{}, &TransformError{Name: name, Err: fmt.Errorf("describe: %w", err)}
	}
	requires := desc.Requires()
	if !l.instrumentation.ShouldInstrument(desc) {
		return Entry{Code: raw, Requires: requires}, nil
	}

	stubs := l.instrumentation.ContainsStubs(desc)
	code, err := l.transform.Rewrite(RewriteRequest{
		Name:     name,
		Code:     raw,
		Registry: l.registry,
		Stubs:    stubs,
	})
	if err != nil {
		return Entry{}, &TransformError{Name: name, Err: err}
	}
	return Entry{Code: code, Instrumented: true, Stubbed: stubs, Requires: requires}, nil
}

// Bootstrap loads a top-level test class. It is the single entry point a test
// runner uses; any failure comes back as a *BootstrapError.
func (l *Loader) Bootstrap(testClassName symbol.Name) (*Class, error) {
	c, err := l.Load(testClassName)
	if err != nil {
		l.logger.Warn("Bootstrap failed", zap.String("name", string(testClassName)), zap.Error(err))
		return nil, &BootstrapError{Name: testClassName, Err: err}
	}
	return c, nil
}

// Preload loads names concurrently and returns the first failure.
func (l *Loader) Preload(names ...symbol.Name) error {
	var g errgroup.Group
	for _, n := range names {
		n := n
		g.Go(func() error {
			_, err := l.Load(n)
			return err
		})
	}
	return g.Wait()
}
