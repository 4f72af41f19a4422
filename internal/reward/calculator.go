package reward

import (
	"errors"
	"fmt"
	"math"

	"github.com/eunej/CleanField/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidArea = errors.New("farm area must be a positive number of hectares")
	ErrInvalidRate = errors.New("reward rate must be positive")
)

// Rates are the fixed per-hectare reward constants
type Rates struct {
	PrimaryPerHectare   decimal.Decimal
	PrimaryCurrency     string
	SecondaryPerHectare decimal.Decimal
	SecondaryCurrency   string
}

// DefaultRates pays 150 USDC (5000 THB) per hectare
func DefaultRates() Rates {
	return Rates{
		PrimaryPerHectare:   decimal.NewFromInt(150),
		PrimaryCurrency:     "USDC",
		SecondaryPerHectare: decimal.NewFromInt(5000),
		SecondaryCurrency:   "THB",
	}
}

// Calculator maps farm area to a reward in both currencies
type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) (*Calculator, error) {
	if !rates.PrimaryPerHectare.IsPositive() || !rates.SecondaryPerHectare.IsPositive() {
		return nil, ErrInvalidRate
	}
	return &Calculator{rates: rates}, nil
}

// Estimate computes the whole-unit reward for areaHectares.
// Amounts are rounded half-up to the nearest unit of each currency.
func (c *Calculator) Estimate(areaHectares float64) (model.RewardEstimate, error) {
	if math.IsNaN(areaHectares) || math.IsInf(areaHectares, 0) || areaHectares <= 0 {
		return model.RewardEstimate{}, fmt.Errorf("%w: %v", ErrInvalidArea, areaHectares)
	}

	area := decimal.NewFromFloat(areaHectares)
	primary := area.Mul(c.rates.PrimaryPerHectare).Round(0)
	secondary := area.Mul(c.rates.SecondaryPerHectare).Round(0)

	return model.RewardEstimate{
		AreaHectares: areaHectares,
		Primary: model.Money{
			Amount:   primary.String(),
			Currency: c.rates.PrimaryCurrency,
		},
		Secondary: model.Money{
			Amount:   secondary.String(),
			Currency: c.rates.SecondaryCurrency,
		},
		Rates: c.Rates(),
	}, nil
}

// Rates returns the configured constants in presentation form
func (c *Calculator) Rates() model.RewardRates {
	return model.RewardRates{
		PrimaryPerHectare:   c.rates.PrimaryPerHectare.String(),
		SecondaryPerHectare: c.rates.SecondaryPerHectare.String(),
		ConversionRate:      c.ConversionRate().String(),
	}
}

// ConversionRate is the number of secondary units per primary unit
func (c *Calculator) ConversionRate() decimal.Decimal {
	return c.rates.SecondaryPerHectare.DivRound(c.rates.PrimaryPerHectare, 6)
}

// Currencies returns the primary and secondary currency codes
func (c *Calculator) Currencies() (primary, secondary string) {
	return c.rates.PrimaryCurrency, c.rates.SecondaryCurrency
}
