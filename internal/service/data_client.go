package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jjenkins/countries/internal/model"
)

const (
	DefaultCountriesURL = "https://restcountries.com/v2/all?fields=name,capital,region,population,flag,currencies"
	DefaultRatesURL     = "https://open.er-api.com/v6/latest/USD"
	DefaultFetchTimeout = 15 * time.Second
)

// DataClient fetches the countries listing and the exchange rate table
type DataClient struct {
	client       *http.Client
	countriesURL string
	ratesURL     string
	timeout      time.Duration
}

// NewDataClient creates a new DataClient. Empty URLs and a non-positive
// timeout fall back to the defaults.
func NewDataClient(countriesURL, ratesURL string, timeout time.Duration) *DataClient {
	if countriesURL == "" {
		countriesURL = DefaultCountriesURL
	}
	if ratesURL == "" {
		ratesURL = DefaultRatesURL
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &DataClient{
		client:       &http.Client{},
		countriesURL: countriesURL,
		ratesURL:     ratesURL,
		timeout:      timeout,
	}
}

// FetchCountries retrieves the raw countries listing
func (c *DataClient) FetchCountries(ctx context.Context) ([]model.RawCountry, error) {
	var countries []model.RawCountry
	if err := c.FetchJSON(ctx, c.countriesURL, c.timeout, &countries); err != nil {
		return nil, err
	}

	// A JSON null decodes to a nil slice; an empty array does not
	if countries == nil {
		return nil, &DataSourceError{URL: c.countriesURL, Reason: "expected a JSON array of countries"}
	}

	return countries, nil
}

// FetchRates retrieves the exchange rate table keyed by currency code
func (c *DataClient) FetchRates(ctx context.Context) (model.RatesTable, error) {
	var resp model.RatesResponse
	if err := c.FetchJSON(ctx, c.ratesURL, c.timeout, &resp); err != nil {
		return nil, err
	}

	if resp.Rates == nil {
		return nil, &DataSourceError{URL: c.ratesURL, Reason: "response has no rates"}
	}

	return resp.Rates, nil
}

// FetchJSON performs a single GET bounded by timeout and decodes the body into v.
// Every failure is reported as a *DataSourceError.
func (c *DataClient) FetchJSON(ctx context.Context, url string, timeout time.Duration, v any) error {
	if timeout <= 0 {
		timeout = c.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DataSourceError{URL: url, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(ctx, url, timeout, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, url, timeout, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DataSourceError{URL: url, Reason: fmt.Sprintf("unexpected status code: %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &DataSourceError{URL: url, Reason: "malformed JSON response", Err: err}
	}

	return nil
}

func transportError(ctx context.Context, url string, timeout time.Duration, reason string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = fmt.Sprintf("timed out after %s", timeout)
	}
	return &DataSourceError{URL: url, Reason: reason, Err: err}
}
