// Package selling implements the selling-plan recommendation engine: a pure
// scoring pass over quiz answers that ranks the fixed set of home-selling
// options, plus the display-card projection for each option.
package selling

import "github.com/rotisserie/eris"

// Option identifies one of the home-selling products the engine can
// recommend. The set is closed; handing anything else to BuildOptionCard is a
// programming error.
type Option string

const (
	OptionCashOffer     Option = "cash_offer"
	OptionTwoPayment    Option = "two_payment"
	OptionSellerFinance Option = "seller_finance"
	OptionPriceLaunch   Option = "price_launch"
	OptionUplist        Option = "uplist"
	OptionEquityBridge  Option = "equity_bridge"
	OptionDirectList    Option = "directlist"
	OptionFullService   Option = "full_service"
)

// priorityOrder breaks score ties. Defined once; never depends on evaluation
// order.
var priorityOrder = []Option{
	OptionCashOffer,
	OptionDirectList,
	OptionFullService,
	OptionSellerFinance,
	OptionPriceLaunch,
	OptionUplist,
	OptionEquityBridge,
	OptionTwoPayment,
}

// priorityRank maps each option to its position in priorityOrder.
var priorityRank = func() map[Option]int {
	m := make(map[Option]int, len(priorityOrder))
	for i, o := range priorityOrder {
		m[o] = i
	}
	return m
}()

// AllOptions returns every option the engine can emit, in priority order.
func AllOptions() []Option {
	out := make([]Option, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// ParseOption validates an externally supplied option name.
func ParseOption(s string) (Option, error) {
	o := Option(s)
	if _, ok := priorityRank[o]; !ok {
		return "", eris.Errorf("unknown selling option %q", s)
	}
	return o, nil
}
