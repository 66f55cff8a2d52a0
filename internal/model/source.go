package model

// RawCountry is a country entry as returned by the countries listing API.
// Population is kept untyped so that non-numeric values can be rejected
// during validation instead of failing the whole decode.
type RawCountry struct {
	Name       string        `json:"name"`
	Capital    string        `json:"capital"`
	Region     string        `json:"region"`
	Population any           `json:"population"`
	Flag       string        `json:"flag"`
	Currencies []RawCurrency `json:"currencies"`
}

// RawCurrency is a currency entry attached to a RawCountry
type RawCurrency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// RatesTable maps an uppercase 3-letter currency code to units per 1 base currency
type RatesTable map[string]float64

// RatesResponse represents the exchange rate API response
type RatesResponse struct {
	Result   string     `json:"result"`
	BaseCode string     `json:"base_code"`
	Rates    RatesTable `json:"rates"`
}
