package main

import (
	"github.com/charmbracelet/lipgloss"

	"shadowbox/internal/policy"
)

var (
	nameStyle  = lipgloss.NewStyle().Bold(true)
	localStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	hostStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ruleStyle  = lipgloss.NewStyle().Faint(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func decisionStyle(d policy.Decision) lipgloss.Style {
	if d == policy.DelegateHost {
		return hostStyle
	}
	return localStyle
}
