package strategy

import (
	"github.com/shopspring/decimal"

	"swing-signals/internal/types"
)

// Size places the target multiple risk distances beyond the entry and
// returns it with the resulting reward/risk ratio. ok is false when the stop
// is on the wrong side of the entry, the target would not be a positive
// price, or R falls below minR (minR itself is accepted).
func Size(side types.Side, entry, stop, multiple, minR decimal.Decimal) (target, r decimal.Decimal, ok bool) {
	var risk decimal.Decimal
	switch side {
	case types.Long:
		risk = entry.Sub(stop)
	case types.Short:
		risk = stop.Sub(entry)
	default:
		return decimal.Zero, decimal.Zero, false
	}
	if !risk.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}

	reward := risk.Mul(multiple)
	if side == types.Long {
		target = entry.Add(reward)
	} else {
		target = entry.Sub(reward)
	}
	if !target.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}

	r = reward.Div(risk)
	if r.LessThan(minR) {
		return decimal.Zero, decimal.Zero, false
	}
	return target, r, true
}
