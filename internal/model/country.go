package model

import (
	"database/sql"
	"time"
)

// Country represents the cached state of a single country
type Country struct {
	ID              int64
	Name            string `validate:"required"`
	Capital         sql.NullString
	Region          sql.NullString
	Population      int64           `validate:"gte=0"`
	CurrencyCode    sql.NullString  `validate:"omitempty,max=10"`
	ExchangeRate    sql.NullFloat64 `validate:"omitempty,gt=0"`
	EstimatedGDP    sql.NullFloat64 `validate:"omitempty,gte=0"`
	FlagURL         sql.NullString
	LastRefreshedAt time.Time
}

// CountryRef identifies an existing country row by id and stored name
type CountryRef struct {
	ID   int64
	Name string
}

// GDPEntry is a single row of the estimated GDP ranking
type GDPEntry struct {
	Name         string
	EstimatedGDP float64
}

// CountryFilter narrows a country listing
type CountryFilter struct {
	Region   string
	Currency string
	Sort     string
}
