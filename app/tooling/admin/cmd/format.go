package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// fmtValue renders floats with a fixed number of decimals so balances and
// prices line up.
func fmtValue(v any) string {
	switch v := v.(type) {
	case float64:
		return decimal.NewFromFloat(v).StringFixed(6)
	default:
		return fmt.Sprint(v)
	}
}
