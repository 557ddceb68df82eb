package models

// Currency is an ISO 4217 code drawn from the closed set the bank supports.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
)

var supportedCurrencies = map[Currency]struct{}{
	USD: {}, EUR: {}, GBP: {}, JPY: {}, CAD: {},
}

// Supported reports whether c is one of the currencies the bank handles.
func (c Currency) Supported() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// SupportedCurrencies returns the closed set of supported currency codes.
func SupportedCurrencies() []Currency {
	return []Currency{USD, EUR, GBP, JPY, CAD}
}
