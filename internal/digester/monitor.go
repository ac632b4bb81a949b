package digester

import (
	"fmt"

	"github.com/KilimcininKorOglu/obaber/internal/logging"
)

// Monitor observes rule outcomes. RuleCompleted receives the digester's
// live path, which is only valid for the duration of the call.
type Monitor interface {
	RuleCompleted(p Pattern, r Rule)
	RuleFailed(err *RuleError)
}

// NopMonitor ignores every notification.
type NopMonitor struct{}

func (NopMonitor) RuleCompleted(Pattern, Rule) {}
func (NopMonitor) RuleFailed(*RuleError)       {}

// LogMonitor logs rule failures as warnings and completions at debug level.
type LogMonitor struct {
	Logger logging.Logger
}

// RuleCompleted logs the completed rule at debug level.
func (m LogMonitor) RuleCompleted(p Pattern, r Rule) {
	m.Logger.Debug("rule completed", "pattern", p.String(), "rule", ruleName(r))
}

// RuleFailed logs the failure as a warning.
func (m LogMonitor) RuleFailed(err *RuleError) {
	m.Logger.Warn("rule failed",
		"pattern", err.Pattern.String(),
		"rule", ruleName(err.Rule),
		"phase", err.Phase.String(),
		"error", err.Err.Error(),
	)
}

// MultiMonitor forwards every notification to each monitor in order.
type MultiMonitor []Monitor

func (mm MultiMonitor) RuleCompleted(p Pattern, r Rule) {
	for _, m := range mm {
		m.RuleCompleted(p, r)
	}
}

func (mm MultiMonitor) RuleFailed(err *RuleError) {
	for _, m := range mm {
		m.RuleFailed(err)
	}
}

// Named can be implemented by a rule to give it a readable name in logs.
type Named interface {
	Name() string
}

func ruleName(r Rule) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}
