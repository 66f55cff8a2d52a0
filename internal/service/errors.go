package service

import (
	"errors"
	"fmt"
)

// Refresh failure categories, matched with errors.Is
var (
	ErrDataSourceUnavailable = errors.New("external data source unavailable")
	ErrValidationFailed      = errors.New("validation failed")
	ErrStorageFailure        = errors.New("storage failure")
)

// DataSourceError reports a failed, timed out, or malformed external fetch
type DataSourceError struct {
	URL    string
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Reason)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSourceUnavailable
}

// Details is the client-facing description of the failure
func (e *DataSourceError) Details() string {
	if e.URL == "" {
		return "Could not fetch data from restcountries or open.er-api"
	}
	return fmt.Sprintf("Could not fetch data from %s", e.URL)
}

// ValidationError reports a fetched country record that cannot be stored.
// Index is the position of the offending entry in the countries listing.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("country %d: %s", e.Index, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// StorageError wraps a query or commit failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func IsDataSourceUnavailable(err error) bool {
	return errors.Is(err, ErrDataSourceUnavailable)
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
