// Package environment manages one isolated scope per simulated platform
// version. Each Environment pairs a sandbox with its own loader and cache;
// nothing but the host provider is shared between versions.
package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shadowbox/internal/config"
	"shadowbox/internal/discovery"
	"shadowbox/internal/intercept"
	"shadowbox/internal/loader"
	"shadowbox/internal/rewrite"
	"shadowbox/internal/sandbox"
	"shadowbox/internal/symbol"
)

var (
	// ErrUnsupportedVersion is returned for a version missing from the config.
	ErrUnsupportedVersion = errors.New("unsupported platform version")

	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("environment manager closed")
)

// Environment is the isolated scope of one platform version.
type Environment struct {
	Version    int
	Sandbox    *sandbox.Sandbox
	Loader     *loader.Loader
	Dispatcher *intercept.Dispatcher
}

// Scope returns the scope name classes defined here carry as their origin.
func (e *Environment) Scope() string { return e.Sandbox.Scope() }

// ScopeName names the scope of version.
func ScopeName(version int) string { return "sdk-" + strconv.Itoa(version) }

// Options configures a Manager.
type Options struct {
	Config config.EnvironmentsConfig
	Tables config.Tables
	// Host is shared by every environment. Defaults to an empty StaticHost.
	Host loader.Provider
	// FS resolves relative roots. Defaults to the working directory.
	FS     fs.FS
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Manager creates environments lazily, at most one per version.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	envs   map[int]*Environment
	closed bool
	group  singleflight.Group
}

// NewManager validates the environment config and returns an empty manager.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Tables.Registry == nil {
		tables, err := config.RulesConfig{}.Build()
		if err != nil {
			return nil, err
		}
		opts.Tables = tables
	}
	if opts.Host == nil {
		opts.Host = loader.NewStaticHost()
	}
	if opts.FS == nil {
		opts.FS = os.DirFS(".")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:   opts,
		logger: logger,
		envs:   make(map[int]*Environment),
	}, nil
}

// Get returns the environment of version, creating it on first use.
// Concurrent first calls share one creation.
func (m *Manager) Get(version int) (*Environment, error) {
	if !m.opts.Config.Supports(version) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if env, ok := m.envs[version]; ok {
		m.mu.Unlock()
		return env, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(strconv.Itoa(version), func() (interface{}, error) {
		m.mu.Lock()
		if env, ok := m.envs[version]; ok {
			m.mu.Unlock()
			return env, nil
		}
		m.mu.Unlock()

		env, err := m.create(version)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			_ = env.Sandbox.Close()
			return nil, ErrClosed
		}
		m.envs[version] = env
		return env, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Environment), nil
}

func (m *Manager) create(version int) (*Environment, error) {
	scope := ScopeName(version)
	logger := m.logger.With(zap.String("scope", scope))
	tables := m.opts.Tables

	sb, err := sandbox.New(sandbox.Options{
		Scope:    scope,
		Registry: tables.Registry,
		Stdout:   m.opts.Stdout,
		Stderr:   m.opts.Stderr,
		Logger:   logger.Named("sandbox"),
	})
	if err != nil {
		return nil, fmt.Errorf("create sandbox for %s: %w", scope, err)
	}

	classRoots, err := m.roots(m.opts.Config.ClassRootsFor(version))
	if err != nil {
		return nil, err
	}
	resourceRoots, err := m.roots(m.opts.Config.ResourceRootsFor(version))
	if err != nil {
		return nil, err
	}
	var infrastructure fs.FS
	if r := m.opts.Config.InfrastructureRoot; r != "" {
		if infrastructure, err = m.root(r); err != nil {
			return nil, err
		}
	}

	translations := tables.Translations
	l, err := loader.New(loader.Options{
		Host:                    m.opts.Host,
		Source:                  loader.NewFSSource(classRoots...),
		Discovery:               discovery.New(logger.Named("discovery")),
		Transform:               rewrite.New(logger.Named("rewrite")),
		Definer:                 sb,
		Acquisition:             tables.Acquisition(),
		Instrumentation:         tables.Instrumentation(),
		Registry:                tables.Registry,
		Translations:            &translations,
		IsolatedResources:       resourceRoots,
		InfrastructureResources: infrastructure,
		Logger:                  logger.Named("loader"),
	})
	if err != nil {
		_ = sb.Close()
		return nil, err
	}

	m.logger.Info("Environment created",
		zap.Int("version", version),
		zap.String("sandbox_id", sb.ID().String()),
		zap.Int("class_roots", len(classRoots)),
		zap.Int("resource_roots", len(resourceRoots)))

	return &Environment{
		Version:    version,
		Sandbox:    sb,
		Loader:     l,
		Dispatcher: sb.Dispatcher(),
	}, nil
}

func (m *Manager) roots(paths []string) ([]fs.FS, error) {
	out := make([]fs.FS, 0, len(paths))
	for _, p := range paths {
		r, err := m.root(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// root resolves absolute paths on disk and relative paths against opts.FS.
func (m *Manager) root(p string) (fs.FS, error) {
	if filepath.IsAbs(p) {
		return os.DirFS(p), nil
	}
	sub, err := fs.Sub(m.opts.FS, path.Clean(filepath.ToSlash(p)))
	if err != nil {
		return nil, fmt.Errorf("root %q: %w", p, err)
	}
	return sub, nil
}

// Bootstrap loads testClassName in the environment of version.
func (m *Manager) Bootstrap(version int, testClassName symbol.Name) (*loader.Class, error) {
	env, err := m.Get(version)
	if err != nil {
		return nil, &loader.BootstrapError{Name: testClassName, Err: err}
	}
	return env.Loader.Bootstrap(testClassName)
}

// Warm creates the environments of versions (all configured versions when
// none are given) concurrently and preloads the configured names in each.
func (m *Manager) Warm(ctx context.Context, versions ...int) error {
	if len(versions) == 0 {
		versions = m.opts.Config.Versions
	}
	preload := make([]symbol.Name, len(m.opts.Config.Preload))
	for i, n := range m.opts.Config.Preload {
		preload[i] = symbol.Name(n)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, v := range versions {
		v := v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			env, err := m.Get(v)
			if err != nil {
				return err
			}
			if err := env.Loader.Preload(preload...); err != nil {
				return fmt.Errorf("preload %s: %w", ScopeName(v), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Versions returns the versions whose environment exists, sorted.
func (m *Manager) Versions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.envs))
	for v := range m.envs {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Close tears down every environment. Later calls to Get fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for v, env := range m.envs {
		if err := env.Sandbox.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ScopeName(v), err))
		}
	}
	m.envs = nil
	m.logger.Debug("Environments closed")
	return errors.Join(errs...)
}
