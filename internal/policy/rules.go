// Package policy holds the two pure decision functions of the loading pipeline:
// which provider supplies a symbol (acquisition) and whether its code must be
// rewritten (instrumentation).
package policy

import "shadowbox/internal/symbol"

// Rules is the fixed rule table both policies evaluate. It is built once per
// process (or per simulated platform configuration) and never mutated after
// being handed to a policy.
type Rules struct {
	// SharedPackages are infrastructure packages whose production code is shared
	// with the host while their own tests are acquired locally.
	SharedPackages []string
	// AlwaysDelegate names are engine internals and test infrastructure that
	// must exist exactly once, in the host.
	AlwaysDelegate symbol.Set
	// HostPrefixes are host runtime, standard library and test framework
	// namespaces.
	HostPrefixes []string
	// FrameworkPrefixes are the simulated framework namespace plus vendor
	// extensions; symbols under them are instrumented.
	FrameworkPrefixes []string
	// StubPrefixes select the vendor namespace whose bodies are replaced
	// wholesale by no-op stubs.
	StubPrefixes []string
}

// DefaultAlwaysDelegate lists the engine and test-infrastructure types.
var DefaultAlwaysDelegate = []symbol.Name{
	"org.robolectric.TestLifecycle",
	"org.robolectric.annotation.RealObject",
	"org.robolectric.bytecode.ShadowWrangler",
	"org.robolectric.manifest.AndroidManifest",
	"android.R",
	"org.robolectric.bytecode.AsmInstrumentingClassLoader",
	"org.robolectric.SdkEnvironment",
	"org.robolectric.SdkConfig",
	"org.robolectric.RobolectricTestRunner",
	"org.robolectric.RobolectricTestRunner$HelperTestRunner",
	"org.robolectric.res.ResourcePath",
	"org.robolectric.res.ResourceLoader",
	"org.robolectric.bytecode.ClassHandler",
	"org.robolectric.bytecode.ClassHandler$Plan",
	"org.robolectric.annotation.Implements",
	"org.robolectric.annotation.Implementation",
	"org.robolectric.annotation.internal.Instrument",
	"org.robolectric.annotation.internal.DoNotInstrument",
	"org.robolectric.annotation.Config",
	"org.robolectric.util.Transcript",
	"org.robolectric.bytecode.DirectObjectMarker",
	"org.robolectric.DependencyJar",
	"org.robolectric.internal.ParallelUniverseInterface",
}

// DefaultRules returns the stock rule table.
func DefaultRules() Rules {
	return Rules{
		SharedPackages: []string{
			"org.robolectric.res",
			"org.robolectric.manifest",
		},
		AlwaysDelegate: symbol.NewSet(DefaultAlwaysDelegate...),
		HostPrefixes: []string{
			"java.",
			"javax.",
			"sun.",
			"com.sun.",
			"org.w3c.",
			"org.xml.",
			"org.junit",
			"org.hamcrest",
			"org.specs2", // mixed scala/java test projects
			"scala.",
			"kotlin.",
			"com.almworks.sqlite4java", // native library must load once
		},
		FrameworkPrefixes: []string{
			"android.",
			"libcore.",
			"dalvik.",
			"com.android.internal.",
			"com.google.android.maps.",
			"com.google.android.gms.",
			"dalvik.system.",
			"org.apache.http.impl.client.DefaultRequestDirector",
		},
		StubPrefixes: []string{
			"com.google.android.maps.",
		},
	}
}

// Extend returns a copy of r with the extra entries appended. r is untouched.
func (r Rules) Extend(alwaysDelegate []symbol.Name, hostPrefixes, frameworkPrefixes []string) Rules {
	out := Rules{
		SharedPackages:    append([]string(nil), r.SharedPackages...),
		AlwaysDelegate:    r.AlwaysDelegate.Union(alwaysDelegate...),
		HostPrefixes:      append(append([]string(nil), r.HostPrefixes...), hostPrefixes...),
		FrameworkPrefixes: append(append([]string(nil), r.FrameworkPrefixes...), frameworkPrefixes...),
		StubPrefixes:      append([]string(nil), r.StubPrefixes...),
	}
	return out
}

func hasAnyPrefix(n symbol.Name, prefixes []string) bool {
	for _, p := range prefixes {
		if n.HasPrefix(p) {
			return true
		}
	}
	return false
}
