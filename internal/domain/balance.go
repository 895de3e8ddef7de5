package domain

import "github.com/shopspring/decimal"

// AccountBalance is a read-only snapshot of one asset's free balance.
type AccountBalance struct {
	Asset string
	Free  decimal.Decimal
}
