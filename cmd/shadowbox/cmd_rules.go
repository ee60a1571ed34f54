package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shadowbox/internal/logging"
	"shadowbox/internal/symbol"
)

var writePath string

// runDecide prints the acquisition decision for every argument
func runDecide(cmd *cobra.Command, args []string) error {
	tables, err := cfg.Rules.Build()
	if err != nil {
		return err
	}
	acq := tables.Acquisition()
	ins := tables.Instrumentation()
	log := logging.Get(logging.CategoryPolicy)

	out := cmd.OutOrStdout()
	for _, arg := range args {
		name := symbol.Name(arg)
		if !name.Valid() {
			return fmt.Errorf("invalid symbol name %q", arg)
		}
		target := tables.Translations.Translate(name)
		decision, rule := acq.Explain(target)
		log.Debug("Decided",
			zap.String("name", arg),
			zap.Stringer("decision", decision),
			zap.Stringer("rule", rule))

		label := nameStyle.Render(arg)
		if target != name {
			label += " -> " + nameStyle.Render(string(target))
		}
		line := fmt.Sprintf("%s  %s  %s",
			label,
			decisionStyle(decision).Render(decision.String()),
			ruleStyle.Render("("+rule.String()+")"))
		if ins.IsFramework(target) {
			line += "  " + warnStyle.Render("framework")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// runIntercepts lists the effective intercept registry
func runIntercepts(cmd *cobra.Command, args []string) error {
	tables, err := cfg.Rules.Build()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, ref := range tables.Registry.Refs() {
		fmt.Fprintf(out, "%-44s %s\n", ref.String(), ruleStyle.Render(ref.Signature()))
	}
	fmt.Fprintf(out, "%d intercepted methods across %d owners\n",
		tables.Registry.Len(), len(tables.Registry.Owners()))
	return nil
}

// runShowConfig prints the effective configuration, or saves it with --write
func runShowConfig(cmd *cobra.Command, args []string) error {
	if writePath == "" {
		return cfg.Encode(cmd.OutOrStdout())
	}
	if err := cfg.Save(writePath); err != nil {
		return err
	}
	logger.Info("Wrote config", zap.String("path", writePath))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", nameStyle.Render(writePath))
	return nil
}
