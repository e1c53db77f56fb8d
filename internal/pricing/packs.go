package pricing

import (
	"sort"

	"github.com/minhmom/api/internal/enum"
	"github.com/shopspring/decimal"
)

// PricePack is one bundle tier on an item: qty units for bundle_price.
type PricePack struct {
	Qty         int64           `json:"qty"`
	BundlePrice decimal.Decimal `json:"bundle_price"`
}

// CalcPack is one pack used by a price calculation.
type CalcPack struct {
	Qty         int64           `json:"qty"`
	Count       int64           `json:"count"`
	BundlePrice decimal.Decimal `json:"bundle_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// PriceCalc is the full bundle-priced total for an order quantity. When
// present on an order it takes precedence over the flat unit-price total
// for display and revenue purposes.
type PriceCalc struct {
	Total  decimal.Decimal `json:"total"`
	Method string          `json:"method"`
	Packs  []CalcPack      `json:"packs"`
}

// MinCost finds the cheapest combination of packs summing to exactly qty
// units, by dynamic programming over the quantity. When no combination
// reaches qty exactly, it falls back to rounding up with the pack that has
// the best per-unit price. Empty packs or non-positive qty price to zero.
func MinCost(packs []PricePack, qty int64) PriceCalc {
	if len(packs) == 0 || qty <= 0 {
		return PriceCalc{Total: decimal.Zero, Method: enum.MethodNone, Packs: []CalcPack{}}
	}

	type pack struct {
		qty  int64
		cost int64
	}
	var usable []pack
	for _, p := range packs {
		c := p.BundlePrice.Round(0).IntPart()
		if p.Qty > 0 && c >= 0 {
			usable = append(usable, pack{qty: p.Qty, cost: c})
		}
	}
	if len(usable) == 0 {
		return PriceCalc{Total: decimal.Zero, Method: enum.MethodNone, Packs: []CalcPack{}}
	}

	const inf = int64(1) << 62
	dp := make([]int64, qty+1)
	choice := make([]int, qty+1)
	for q := int64(1); q <= qty; q++ {
		dp[q] = inf
		choice[q] = -1
	}
	for q := int64(1); q <= qty; q++ {
		for i, p := range usable {
			if p.qty <= q && dp[q-p.qty] != inf && dp[q-p.qty]+p.cost < dp[q] {
				dp[q] = dp[q-p.qty] + p.cost
				choice[q] = i
			}
		}
	}

	if dp[qty] != inf {
		counts := make(map[int]int64)
		for q := qty; q > 0 && choice[q] != -1; q -= usable[choice[q]].qty {
			counts[choice[q]]++
		}
		var out []CalcPack
		total := int64(0)
		for i, cnt := range counts {
			subtotal := cnt * usable[i].cost
			total += subtotal
			out = append(out, CalcPack{
				Qty:         usable[i].qty,
				Count:       cnt,
				BundlePrice: decimal.NewFromInt(usable[i].cost),
				Subtotal:    decimal.NewFromInt(subtotal),
			})
		}
		sort.Slice(out, func(a, b int) bool { return out[a].Qty < out[b].Qty })
		return PriceCalc{Total: decimal.NewFromInt(total), Method: enum.MethodDP, Packs: out}
	}

	// No exact combination: round up with the cheapest per-unit pack.
	best := 0
	for i := 1; i < len(usable); i++ {
		// cost/qty comparison without floats: a.cost*b.qty < b.cost*a.qty
		if usable[i].cost*usable[best].qty < usable[best].cost*usable[i].qty {
			best = i
		}
	}
	p := usable[best]
	cnt := (qty + p.qty - 1) / p.qty
	subtotal := cnt * p.cost
	return PriceCalc{
		Total:  decimal.NewFromInt(subtotal),
		Method: enum.MethodGreedyCeil,
		Packs: []CalcPack{{
			Qty:         p.qty,
			Count:       cnt,
			BundlePrice: decimal.NewFromInt(p.cost),
			Subtotal:    decimal.NewFromInt(subtotal),
		}},
	}
}

// CalcForOrder prices qty units of an item: bundle min-cost when the item
// carries price packs, flat unit price otherwise. A nil item prices to the
// fallback-none calculation so callers never branch.
func CalcForOrder(item *Item, unitPrice decimal.Decimal, qty int64) PriceCalc {
	if item != nil && len(item.Prices) > 0 {
		return MinCost(item.Prices, qty)
	}
	if qty <= 0 || unitPrice.IsZero() {
		return PriceCalc{Total: decimal.Zero, Method: enum.MethodNone, Packs: []CalcPack{}}
	}
	return PriceCalc{Total: FlatTotal(unitPrice, qty), Method: enum.MethodNone, Packs: []CalcPack{}}
}
