package estimate

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// RatePerKm is the fixed price per kilometer in BRL.
const RatePerKm = 0.50

// PricingStrategy defines the interface for turning a distance into a price.
type PricingStrategy interface {
	// Price returns the estimated price in BRL for the given distance.
	Price(distanceKm float64) (float64, error)
}

// FlatRatePricing charges a fixed amount per kilometer.
type FlatRatePricing struct {
	rate float64
}

// NewFlatRatePricing creates the standard per-kilometer pricing.
func NewFlatRatePricing() *FlatRatePricing {
	return &FlatRatePricing{rate: RatePerKm}
}

// Price computes round(distanceKm x rate, 2).
func (p *FlatRatePricing) Price(distanceKm float64) (float64, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return 0, fmt.Errorf("distance must be finite")
	}
	if distanceKm <= 0 {
		return 0, fmt.Errorf("distance must be positive, got %v", distanceKm)
	}
	return round2(distanceKm * p.rate), nil
}

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders amount with pt-BR grouping and two decimals, e.g. "1.234,56".
// No currency symbol is added.
func FormatBRL(amount float64) string {
	return brPrinter.Sprint(number.Decimal(amount, number.Scale(2)))
}
