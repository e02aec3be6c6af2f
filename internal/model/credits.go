package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Credits is a credit amount in hundredths of a credit.
type Credits int64

// roundingEpsilon absorbs float error in products such as 0.1*3 before
// rounding up.
const roundingEpsilon = 1e-9

// CreditsFromFloat converts a whole-credit amount, rounding to the nearest hundredth.
func CreditsFromFloat(f float64) Credits {
	return Credits(math.Round(f * 100))
}

// CeilCredits rounds a raw credit amount up to two decimals.
func CeilCredits(f float64) Credits {
	if f <= 0 {
		return 0
	}
	return Credits(math.Ceil(f*100 - roundingEpsilon))
}

func (c Credits) Float() float64 {
	return float64(c) / 100
}

func (c Credits) String() string {
	return strconv.FormatFloat(c.Float(), 'f', -1, 64)
}

func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid credit amount %q: %w", string(data), err)
	}
	*c = CreditsFromFloat(f)
	return nil
}

// FormatDollars renders a cent amount as dollars, dropping ".00".
func FormatDollars(cents int64) string {
	if cents%100 == 0 {
		return strconv.FormatInt(cents/100, 10)
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
