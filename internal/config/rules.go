package config

import (
	"fmt"

	"shadowbox/internal/intercept"
	"shadowbox/internal/policy"
	"shadowbox/internal/symbol"
	"shadowbox/internal/translate"
)

// RulesConfig lists additions to the stock rule tables. Nothing here can
// remove a stock entry.
type RulesConfig struct {
	AlwaysDelegate    []string          `yaml:"always_delegate,omitempty"`
	HostPrefixes      []string          `yaml:"host_prefixes,omitempty"`
	FrameworkPrefixes []string          `yaml:"framework_prefixes,omitempty"`
	Intercepts        []string          `yaml:"intercepts,omitempty"`   // "owner.method" or "owner.*"
	Translations      map[string]string `yaml:"translations,omitempty"` // requested -> stand-in
}

// Tables are the immutable structures built from a RulesConfig.
type Tables struct {
	Rules        policy.Rules
	Registry     *intercept.Registry
	Translations translate.Map
}

// Acquisition returns an acquisition policy over the tables.
func (t Tables) Acquisition() *policy.Acquisition { return policy.NewAcquisition(t.Rules) }

// Instrumentation returns an instrumentation policy over the tables.
func (t Tables) Instrumentation() *policy.Instrumentation {
	return policy.NewInstrumentation(t.Rules)
}

// Build merges the configured additions over the stock tables.
func (r RulesConfig) Build() (Tables, error) {
	delegate := make([]symbol.Name, 0, len(r.AlwaysDelegate))
	for _, s := range r.AlwaysDelegate {
		n := symbol.Name(s)
		if !n.Valid() {
			return Tables{}, fmt.Errorf("%w: always_delegate name %q", ErrInvalidConfig, s)
		}
		delegate = append(delegate, n)
	}
	for _, p := range append(append([]string(nil), r.HostPrefixes...), r.FrameworkPrefixes...) {
		if p == "" {
			return Tables{}, fmt.Errorf("%w: empty prefix", ErrInvalidConfig)
		}
	}

	refs := make([]intercept.MethodRef, 0, len(r.Intercepts))
	for _, s := range r.Intercepts {
		ref, err := intercept.ParseMethodRef(s)
		if err != nil {
			return Tables{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		refs = append(refs, ref)
	}

	pairs := make(map[symbol.Name]symbol.Name, len(r.Translations))
	for from, to := range r.Translations {
		f, t := symbol.Name(from), symbol.Name(to)
		if !f.Valid() || !t.Valid() {
			return Tables{}, fmt.Errorf("%w: translation %q -> %q", ErrInvalidConfig, from, to)
		}
		pairs[f] = t
	}

	return Tables{
		Rules:        policy.DefaultRules().Extend(delegate, r.HostPrefixes, r.FrameworkPrefixes),
		Registry:     intercept.DefaultRegistry().With(refs...),
		Translations: translate.Default().With(pairs),
	}, nil
}
