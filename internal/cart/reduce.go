package cart

import (
	"github.com/shopspring/decimal"

	"teakspice-storefront/internal/model"
)

// Total is the sum of price times quantity over lines.
func Total(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// The reducers below never modify their input.

func applyDelta(lines []model.CartLine, productID string, delta int) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].Product.ID == productID {
			out[i].Quantity += delta
		}
	}
	return out
}

func removeLine(lines []model.CartLine, productID string) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Product.ID != productID {
			out = append(out, l)
		}
	}
	return out
}

func mergeLine(lines []model.CartLine, p model.Product, quantity int) []model.CartLine {
	if _, ok := find(lines, p.ID); ok {
		return applyDelta(lines, p.ID, quantity)
	}
	out := make([]model.CartLine, len(lines), len(lines)+1)
	copy(out, lines)
	return append(out, model.CartLine{Product: p, Quantity: quantity})
}

func find(lines []model.CartLine, productID string) (model.CartLine, bool) {
	for _, l := range lines {
		if l.Product.ID == productID {
			return l, true
		}
	}
	return model.CartLine{}, false
}
