package models

import "errors"

var (
	ErrPricesNotFound = errors.New("price history not found")
	ErrModelNotFound  = errors.New("model not found")
	ErrNoProviderData = errors.New("no provider returned data")
	ErrTickerNotFound = errors.New("no ticker in message")
	ErrNotConfigured  = errors.New("not configured")
)
