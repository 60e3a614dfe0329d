package domain

import "github.com/shopspring/decimal"

// FeeSchedule holds one venue's trading and transfer costs. Rates are
// fractions (0.001 = 0.1%), withdrawal fees are fixed amounts in asset
// units. A venue without a schedule is unknown, which is distinct from a
// schedule of zero fees.
type FeeSchedule struct {
	Venue          string                     `json:"venue"`
	Taker          decimal.Decimal            `json:"taker"`
	Maker          decimal.Decimal            `json:"maker"`
	DepositFee     decimal.Decimal            `json:"deposit_fee"`
	WithdrawalFees map[string]decimal.Decimal `json:"withdrawal_fees"`
}

// Withdrawal returns the fixed withdrawal fee for an asset. The boolean is
// false when the asset has no entry; callers must not treat that as zero.
func (f FeeSchedule) Withdrawal(asset string) (decimal.Decimal, bool) {
	fee, ok := f.WithdrawalFees[asset]
	return fee, ok
}
