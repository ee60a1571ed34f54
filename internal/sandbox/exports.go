package sandbox

import (
	"path"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"shadowbox/internal/intercept"
	"shadowbox/internal/rewrite"
	"shadowbox/internal/symbol"
)

// =============================================================================
// SHADOW PACKAGES
// =============================================================================
// Rewritten code imports "intercepted/<path>" instead of <path> for every
// package the registry names. A shadow package carries all symbols of the
// original; intercepted functions are replaced by wrappers of the same type
// that route each call through the scope's Dispatcher.

// ShadowExports builds the shadow packages for every stdlib package owning at
// least one registry entry, directly or through one of its types. Intercepted
// methods of a type T are exported as T_Method, taking the receiver first.
func ShadowExports(base interp.Exports, reg *intercept.Registry, disp *intercept.Dispatcher, logger *zap.Logger) interp.Exports {
	if logger == nil {
		logger = zap.NewNop()
	}
	owners := make(map[symbol.Name]bool)
	for _, o := range reg.Owners() {
		owners[o] = true
		if pkg := symbol.Name(o.Package()); pkg != "" && !owners[pkg] {
			// Only a package owning a type entry; kept if a method is wrapped.
			owners[pkg] = false
		}
	}

	out := make(interp.Exports)
	for key, syms := range base {
		importPath, pkgName := path.Dir(key), path.Base(key)
		owner := symbol.FromImportPath(importPath)
		direct, ok := owners[owner]
		if !ok {
			continue
		}
		shadow := make(map[string]reflect.Value, len(syms))
		wrapped := 0
		for name, v := range syms {
			if isFunc(v) && reg.Intercepts(owner, name) {
				shadow[name] = Wrap(owner, name, v, disp, logger)
				wrapped++
				continue
			}
			shadow[name] = v
		}
		for name, v := range syms {
			if !isType(v) {
				continue
			}
			typeOwner := symbol.Name(string(owner) + "." + name)
			for method, fn := range WrapMethods(typeOwner, v.Type().Elem(), reg, disp, logger) {
				shadow[rewrite.MethodExport(name, method)] = fn
				wrapped++
			}
		}
		if !direct && wrapped == 0 {
			continue
		}
		out[rewrite.ShadowPath(importPath)+"/"+pkgName] = shadow
		logger.Debug("Built shadow package",
			zap.String("path", importPath),
			zap.Int("symbols", len(shadow)),
			zap.Int("wrapped", wrapped))
	}
	return out
}

// StdlibShadows is ShadowExports over the interpreter's standard library.
func StdlibShadows(reg *intercept.Registry, disp *intercept.Dispatcher, logger *zap.Logger) interp.Exports {
	return ShadowExports(stdlib.Symbols, reg, disp, logger)
}

// =============================================================================
// REDIRECT RUNTIME
// =============================================================================

// RedirectExports provides the package redirected declarations import, bound
// to disp. Redirect reports whether a handler took the call; Result converts
// one handler result to the declared type of zero, or returns zero.
func RedirectExports(disp *intercept.Dispatcher, logger *zap.Logger) interp.Exports {
	if logger == nil {
		logger = zap.NewNop()
	}
	redirect := func(owner, method string, recv interface{}, args ...interface{}) ([]interface{}, bool) {
		return disp.Redirect(&intercept.Invocation{
			Owner:    symbol.Name(owner),
			Method:   method,
			Receiver: recv,
			Args:     args,
		})
	}
	result := func(results []interface{}, i int, zero interface{}) interface{} {
		if i >= len(results) || results[i] == nil {
			return zero
		}
		if zero == nil {
			return results[i]
		}
		rv, want := reflect.ValueOf(results[i]), reflect.TypeOf(zero)
		switch {
		case rv.Type().AssignableTo(want):
			return results[i]
		case rv.Type().ConvertibleTo(want):
			return rv.Convert(want).Interface()
		}
		logger.Warn("Handler result has wrong type, using zero value",
			zap.Int("index", i),
			zap.Stringer("have", rv.Type()),
			zap.Stringer("want", want))
		return zero
	}
	return interp.Exports{
		rewrite.RuntimePath + "/" + rewrite.RuntimePackage: {
			"Redirect": reflect.ValueOf(redirect),
			"Result":   reflect.ValueOf(result),
		},
	}
}

// isFunc excludes package variables of function type, which are exported as
// addressable values.
func isFunc(v reflect.Value) bool {
	return v.IsValid() && v.Kind() == reflect.Func && !v.CanAddr()
}

// isType matches the (*T)(nil) values yaegi exports types as.
func isType(v reflect.Value) bool {
	return v.IsValid() && v.Kind() == reflect.Ptr && v.IsNil() && !v.CanAddr()
}

// WrapMethods returns a wrapper for every method of t that reg intercepts on
// owner, keyed by method name. A wrapper takes the receiver as its first
// argument: t itself for interfaces and value methods, *t for pointer methods.
func WrapMethods(owner symbol.Name, t reflect.Type, reg *intercept.Registry, disp *intercept.Dispatcher, logger *zap.Logger) map[string]reflect.Value {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make(map[string]reflect.Value)
	if t.Kind() == reflect.Interface {
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if !reg.Intercepts(owner, m.Name) {
				continue
			}
			ins := []reflect.Type{t}
			for k := 0; k < m.Type.NumIn(); k++ {
				ins = append(ins, m.Type.In(k))
			}
			outs := make([]reflect.Type, m.Type.NumOut())
			for k := range outs {
				outs[k] = m.Type.Out(k)
			}
			ft := reflect.FuncOf(ins, outs, m.Type.IsVariadic())
			name := m.Name
			out[name] = wrapCall(owner, name, ft, true, func(args []reflect.Value) []reflect.Value {
				return call(args[0].MethodByName(name), args[1:])
			}, disp, logger)
		}
		return out
	}

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if !reg.Intercepts(owner, m.Name) {
			continue
		}
		// Value methods take t, so both t and *t receivers can be passed.
		if vm, ok := t.MethodByName(m.Name); ok {
			m = vm
		}
		fn := m.Func
		out[m.Name] = wrapCall(owner, m.Name, fn.Type(), true, func(args []reflect.Value) []reflect.Value {
			return call(fn, args)
		}, disp, logger)
	}
	return out
}

// Wrap returns a function of fn's type that sends every call through disp as
// owner.method. Without a handler the original fn runs.
func Wrap(owner symbol.Name, method string, fn reflect.Value, disp *intercept.Dispatcher, logger *zap.Logger) reflect.Value {
	if logger == nil {
		logger = zap.NewNop()
	}
	return wrapCall(owner, method, fn.Type(), false, func(args []reflect.Value) []reflect.Value {
		return call(fn, args)
	}, disp, logger)
}

// wrapCall builds a function of type ft dispatching as owner.method. With
// withRecv the first argument is the receiver and the rest are the arguments.
func wrapCall(owner symbol.Name, method string, ft reflect.Type, withRecv bool, original func([]reflect.Value) []reflect.Value, disp *intercept.Dispatcher, logger *zap.Logger) reflect.Value {
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		inv := &intercept.Invocation{Owner: owner, Method: method}
		rest := args
		if withRecv {
			inv.Receiver = receiver(args[0])
			rest = args[1:]
		}
		inv.Args = interfaces(rest)
		results := disp.Invoke(inv, func() []interface{} {
			return interfaces(original(args))
		})
		return values(ft, results, inv, logger)
	})
}

func call(fn reflect.Value, args []reflect.Value) []reflect.Value {
	if fn.Type().IsVariadic() {
		return fn.CallSlice(args)
	}
	return fn.Call(args)
}

func receiver(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	if v.Kind() == reflect.Interface && v.IsNil() {
		return nil
	}
	return v.Interface()
}

func interfaces(vs []reflect.Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		if v.IsValid() && v.CanInterface() {
			out[i] = v.Interface()
		}
	}
	return out
}

// values maps handler results onto ft's result types. Missing or nil results
// become zero values, as do results of an unusable type.
func values(ft reflect.Type, results []interface{}, inv *intercept.Invocation, logger *zap.Logger) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	for i := range out {
		want := ft.Out(i)
		out[i] = reflect.Zero(want)
		if i >= len(results) || results[i] == nil {
			continue
		}
		rv := reflect.ValueOf(results[i])
		switch {
		case rv.Type().AssignableTo(want):
			out[i] = rv
		case rv.Type().ConvertibleTo(want):
			out[i] = rv.Convert(want)
		default:
			logger.Warn("Handler result has wrong type, using zero value",
				zap.String("ref", inv.Signature()),
				zap.Int("index", i),
				zap.Stringer("have", rv.Type()),
				zap.Stringer("want", want))
		}
	}
	return out
}
