// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

// BudgetLevel classifies store disk usage against the retention
// budget.
type BudgetLevel int

const (
	// BudgetBelowWarning means usage is comfortably inside budget.
	BudgetBelowWarning BudgetLevel = iota

	// BudgetWarning means the warn threshold (default 80%) is
	// crossed.
	BudgetWarning

	// BudgetCritical means the critical threshold (default 90%) is
	// crossed.
	BudgetCritical

	// BudgetExceeded means usage is at or over the budget. Strict
	// mode fails saves; degraded mode skips them.
	BudgetExceeded
)

func (l BudgetLevel) String() string {
	switch l {
	case BudgetBelowWarning:
		return "below-warning"
	case BudgetWarning:
		return "warning"
	case BudgetCritical:
		return "critical"
	case BudgetExceeded:
		return "exceeded"
	default:
		return "unknown"
	}
}

// EvaluateBudget classifies usage against the retention policy's
// budget and thresholds. Pure function; the save path and operator
// tooling share it.
func EvaluateBudget(usageBytes int64, policy RetentionPolicy) BudgetLevel {
	if usageBytes >= policy.BudgetBytes {
		return BudgetExceeded
	}
	percent := usageBytes * 100 / policy.BudgetBytes
	switch {
	case percent >= int64(policy.CriticalPercent):
		return BudgetCritical
	case percent >= int64(policy.WarnPercent):
		return BudgetWarning
	default:
		return BudgetBelowWarning
	}
}
