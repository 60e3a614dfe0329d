package domain

import "github.com/shopspring/decimal"

// OpportunityAlert fires when a pair's best net profit reaches a threshold.
type OpportunityAlert struct {
	Pair         string          `json:"pair"`
	MinNetProfit decimal.Decimal `json:"min_net_profit"`
	IsPersistent bool            `json:"is_persistent"`
	active       bool
}

// NewOpportunityAlert creates an active alert. A non-persistent alert is
// deactivated by its owner after the first trigger.
func NewOpportunityAlert(pair string, minNetProfit decimal.Decimal, isPersistent bool) *OpportunityAlert {
	return &OpportunityAlert{
		Pair:         pair,
		MinNetProfit: minNetProfit,
		IsPersistent: isPersistent,
		active:       true,
	}
}

// IsActive returns whether the alert is active
func (a *OpportunityAlert) IsActive() bool {
	return a.active
}

// SetActive sets the alert's active state
func (a *OpportunityAlert) SetActive(active bool) {
	a.active = active
}

// CheckCondition reports whether the alert should fire for the given net
// profit. Inactive alerts never fire.
func (a *OpportunityAlert) CheckCondition(netProfit decimal.Decimal) bool {
	if !a.active {
		return false
	}
	return netProfit.GreaterThanOrEqual(a.MinNetProfit)
}
