package pricing

import "github.com/shopspring/decimal"

// Form keeps unit price, quantity and total price mutually consistent
// while exactly one of the three fields is edited. The invariant is
// total == round(unit_price * qty); whichever field the user is not
// touching gets derived.
//
// The total field is special: while it has focus it is free text (the
// user may be mid-keystroke), so edits to it never trigger recomputation
// until Blur.
type Form struct {
	Qty       int64
	UnitPrice decimal.Decimal
	Total     decimal.Decimal

	// TotalText mirrors what the total field currently displays. It is
	// authoritative while editingTotal is set.
	TotalText    string
	editingTotal bool
}

// NewForm builds a form from known values and derives the total.
func NewForm(qty int64, unitPrice decimal.Decimal) *Form {
	f := &Form{Qty: qty, UnitPrice: unitPrice}
	f.recomputeTotal()
	return f
}

// SetQty applies a quantity edit. The total is rederived unless the total
// field is currently being typed into.
func (f *Form) SetQty(qty int64) {
	f.Qty = qty
	if !f.editingTotal {
		f.recomputeTotal()
	}
}

// SetUnitPrice applies a unit price edit. Unit price is the driving value,
// so the total always follows immediately.
func (f *Form) SetUnitPrice(unitPrice decimal.Decimal) {
	f.UnitPrice = unitPrice
	f.recomputeTotal()
}

// TypeTotal records keystrokes in the total field without reconciling.
func (f *Form) TypeTotal(text string) {
	f.TotalText = text
	f.editingTotal = true
}

// BlurTotal commits the typed total: the unit price is rederived as
// round(total/qty) when qty > 0, and 0 otherwise (a zero or missing
// quantity must never produce a division error). Both money fields are
// reformatted with thousands grouping.
func (f *Form) BlurTotal() {
	f.Total = ParseMoney(f.TotalText)
	if f.Qty > 0 {
		f.UnitPrice = f.Total.Div(decimal.NewFromInt(f.Qty)).Round(0)
	} else {
		f.UnitPrice = decimal.Zero
	}
	f.editingTotal = false
	f.TotalText = FormatMoney(f.Total)
}

// TotalDisplay returns what the total field should show: raw text while
// being edited, the formatted amount otherwise.
func (f *Form) TotalDisplay() string {
	if f.editingTotal {
		return f.TotalText
	}
	return FormatMoney(f.Total)
}

// UnitPriceDisplay returns the grouped unit price.
func (f *Form) UnitPriceDisplay() string {
	return FormatMoney(f.UnitPrice)
}

func (f *Form) recomputeTotal() {
	f.Total = f.UnitPrice.Mul(decimal.NewFromInt(f.Qty)).Round(0)
	f.TotalText = FormatMoney(f.Total)
}

// FlatTotal is the reconciliation formula on its own: round(unit * qty).
// Used wherever a total must be rederived outside a form, e.g. after a
// split changes an order's quantity.
func FlatTotal(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(qty)).Round(0)
}

// UnitFromTotal derives the unit price from a committed total, with the
// same qty == 0 guard as BlurTotal.
func UnitFromTotal(total decimal.Decimal, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(qty)).Round(0)
}
