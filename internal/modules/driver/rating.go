// README: Driver rating aggregation.
package driver

import (
	"github.com/shopspring/decimal"

	"ridehail/internal/types"
)

// MeanRating is the arithmetic mean of ratings rounded half-up to two places,
// or zero when there are none.
func MeanRating(ratings []int) decimal.Decimal {
	if len(ratings) == 0 {
		return decimal.Zero
	}
	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	return types.RoundMoney(decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(ratings)))))
}
