package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shadowbox/internal/config"
	"shadowbox/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded by the root command before any subcommand runs
	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shadowbox",
	Short: "shadowbox - isolated loading for simulated platform versions",
	Long: `shadowbox decides, per symbol, whether an isolated scope or the host
supplies its definition, rewrites framework code so selected calls are
redirected to runtime handlers, and defines the result in one interpreter
scope per simulated platform version.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			loaded.Logging.DebugMode = true
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		if err := logging.Initialize(loaded.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("Config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

// decideCmd explains acquisition and instrumentation decisions
var decideCmd = &cobra.Command{
	Use:   "decide [name...]",
	Short: "Show which provider supplies each symbol",
	Long: `Applies the translation table and the acquisition rules to each name and
prints the decision, the rule that produced it and whether the symbol lies in
the instrumented framework namespace.

Example:
  shadowbox decide java.lang.String android.view.View 'android.R$styleable'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecide,
}

// interceptsCmd lists the intercepted method registry
var interceptsCmd = &cobra.Command{
	Use:   "intercepts",
	Short: "List intercepted methods",
	RunE:  runIntercepts,
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML, or save it with --write",
	RunE:  runShowConfig,
}

// bootstrapCmd loads a test class into a platform version's scope
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [test-class]",
	Short: "Bootstrap a test class in an isolated environment",
	Long: `Creates the environment of the requested platform version and loads the
test class through its isolated loader. With --call, a no-argument function
declared by the class is invoked and its results printed.

Example:
  shadowbox bootstrap com.example.ClockTest --sdk 19 --call Run`,
	Args: cobra.ExactArgs(1),
	RunE: runBootstrap,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "shadowbox.yaml", "Config file")

	configCmd.Flags().StringVar(&writePath, "write", "", "Save the effective configuration to this file")

	bootstrapCmd.Flags().IntVar(&sdkVersion, "sdk", 0, "Platform version (default: environments.default_version)")
	bootstrapCmd.Flags().StringVar(&callIdent, "call", "", "Function of the class to invoke")
	bootstrapCmd.Flags().StringVar(&rootDir, "root", ".", "Directory relative roots resolve against")

	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(interceptsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
