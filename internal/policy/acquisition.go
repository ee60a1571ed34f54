package policy

import (
	"strings"

	"shadowbox/internal/symbol"
)

// Decision names the provider that supplies a symbol's definition.
type Decision int

const (
	// AcquireLocal defines the symbol inside the isolated scope.
	AcquireLocal Decision = iota
	// DelegateHost asks the host provider and returns its definition untouched.
	DelegateHost
)

func (d Decision) String() string {
	if d == DelegateHost {
		return "DELEGATE_HOST"
	}
	return "ACQUIRE_LOCAL"
}

// Rule identifies which acquisition rule produced a decision.
type Rule int

const (
	RuleAlwaysDelegate Rule = iota
	RuleSharedInfrastructure
	RuleInternalResourceTable
	RuleStyleableException
	RuleResourceTable
	RuleHostPrefix
	RuleDefault
)

var ruleNames = [...]string{
	RuleAlwaysDelegate:        "always-delegate",
	RuleSharedInfrastructure:  "shared-infrastructure",
	RuleInternalResourceTable: "internal-resource-table",
	RuleStyleableException:    "styleable-exception",
	RuleResourceTable:         "resource-table",
	RuleHostPrefix:            "host-prefix",
	RuleDefault:               "default",
}

func (r Rule) String() string {
	if int(r) < len(ruleNames) {
		return ruleNames[r]
	}
	return "unknown"
}

const (
	internalR       = "com.android.internal.R"
	styleableLegacy = "android.R$styleable"
)

// Acquisition decides, per name, whether the isolated scope or the host
// provides the definition. It is stateless and safe for concurrent use.
type Acquisition struct {
	rules Rules
}

// NewAcquisition returns an acquisition policy over the given rules.
func NewAcquisition(rules Rules) *Acquisition {
	return &Acquisition{rules: rules}
}

// Decide returns the provider for name.
func (a *Acquisition) Decide(name symbol.Name) Decision {
	d, _ := a.Explain(name)
	return d
}

// Explain returns the decision along with the rule that produced it. Rules are
// evaluated in a fixed order and the first match wins; the two resource-table
// exceptions must run before the general resource-table rule.
func (a *Acquisition) Explain(name symbol.Name) (Decision, Rule) {
	// Always-delegate membership holds regardless of every other rule: these
	// types must never have two identities.
	if a.rules.AlwaysDelegate.Contains(name) {
		return DelegateHost, RuleAlwaysDelegate
	}

	if a.isSharedPackage(name.Package()) {
		// Coarse on purpose: any simple name containing "Test" qualifies.
		if strings.Contains(name.SimpleName(), "Test") {
			return AcquireLocal, RuleSharedInfrastructure
		}
		return DelegateHost, RuleSharedInfrastructure
	}

	// Resource ids differ per simulated platform version.
	if isInternalResourceTable(name) {
		return AcquireLocal, RuleInternalResourceTable
	}

	// Framework code refers to this table through the wrong owner.
	if name == styleableLegacy {
		return AcquireLocal, RuleStyleableException
	}

	if isResourceTable(name) {
		return DelegateHost, RuleResourceTable
	}

	if hasAnyPrefix(name, a.rules.HostPrefixes) {
		return DelegateHost, RuleHostPrefix
	}

	return AcquireLocal, RuleDefault
}

func (a *Acquisition) isSharedPackage(pkg string) bool {
	for _, p := range a.rules.SharedPackages {
		if pkg == p {
			return true
		}
	}
	return false
}

// isInternalResourceTable matches com.android.internal.R and any of its
// nested tables.
func isInternalResourceTable(name symbol.Name) bool {
	return name.Outer() == internalR
}

// isResourceTable matches "<pkg>.R" and "<pkg>.R$<lowercase>" in any package.
func isResourceTable(name symbol.Name) bool {
	if name.Package() == "" {
		return false
	}
	if name.Outer().SimpleName() != "R" {
		return false
	}
	simple := name.SimpleName()
	if simple == "R" {
		return true
	}
	if len(simple) == 2 {
		return false
	}
	for _, c := range simple[2:] {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
