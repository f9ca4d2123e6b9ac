package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyURL             = errors.New("empty url")
	ErrInvalidURL           = errors.New("invalid article url")
	ErrResolutionAmbiguous  = errors.New("symbol resolution ambiguous")
	ErrResolutionNotFound   = errors.New("symbol resolution not found")
	ErrPriceDataUnavailable = errors.New("price data unavailable")
	ErrSourceUnavailable    = errors.New("news sources unavailable")
)

const (
	CollectionFetchFailed = "fetch_failed"
	CollectionMalformed   = "malformed"
)

// CollectionError records a page that was skipped after retries, or an item
// that could not be parsed.
type CollectionError struct {
	Source string `json:"source"`
	Cursor string `json:"cursor"`
	Kind   string `json:"kind"`
	Err    string `json:"error"`
}

func (e CollectionError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %s: %s", e.Source, e.Cursor, e.Kind, e.Err)
}

// Enrichment fields named in FieldError.
const (
	FieldSummary   = "summary"
	FieldSentiment = "sentiment"
	FieldKeywords  = "keywords"
	FieldCompanies = "companies"
)

// FieldError marks one enrichment field that could not be produced.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return "enrich " + e.Field + ": " + e.Message
}

// StorageError is fatal to a pipeline run.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
