package currencies

import (
	"github.com/sig-0/cardprice/storage/types"
)

var (
	USD types.Currency = "USD"
	EUR types.Currency = "EUR"
	BRL types.Currency = "BRL"
	GBP types.Currency = "GBP"
	JPY types.Currency = "JPY"
)

// Known lists the currencies the service accepts as a target
var Known = []types.Currency{USD, EUR, BRL, GBP, JPY}

// IsKnown reports whether c is an accepted target currency
func IsKnown(c types.Currency) bool {
	c = c.Normalize()

	for _, k := range Known {
		if k == c {
			return true
		}
	}

	return false
}
