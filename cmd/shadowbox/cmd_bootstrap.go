package main

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shadowbox/internal/environment"
	"shadowbox/internal/logging"
	"shadowbox/internal/symbol"
)

var (
	sdkVersion int
	callIdent  string
	rootDir    string
)

// runBootstrap loads a test class in the environment of --sdk
func runBootstrap(cmd *cobra.Command, args []string) error {
	tables, err := cfg.Rules.Build()
	if err != nil {
		return err
	}
	version := sdkVersion
	if version == 0 {
		version = cfg.Environments.DefaultVersion
	}

	mgr, err := environment.NewManager(environment.Options{
		Config: cfg.Environments,
		Tables: tables,
		FS:     os.DirFS(rootDir),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Logger: logging.Get(logging.CategoryEnvironment),
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	if len(cfg.Environments.Preload) > 0 {
		if err := mgr.Warm(context.Background(), version); err != nil {
			return err
		}
	}

	class, err := mgr.Bootstrap(version, symbol.Name(args[0]))
	if err != nil {
		return err
	}
	logger.Info("Bootstrapped", zap.String("class", class.String()), zap.Int("sdk", version))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", nameStyle.Render(string(class.Name())), localStyle.Render(class.Origin()))
	if class.Instrumented() {
		fmt.Fprintln(out, warnStyle.Render("instrumented"))
	}
	if callIdent == "" {
		return nil
	}

	fn, err := class.Lookup(callIdent)
	if err != nil {
		return err
	}
	if fn.Kind() != reflect.Func || fn.Type().NumIn() != 0 {
		return fmt.Errorf("%s.%s is not a function without arguments", class.Name(), callIdent)
	}
	for _, r := range fn.Call(nil) {
		fmt.Fprintln(out, r.Interface())
	}
	return nil
}
