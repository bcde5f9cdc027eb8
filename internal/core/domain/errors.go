package domain

import "errors"

var (
	ErrDuplicateProductID = errors.New("duplicate product id")
	ErrProductNotFound    = errors.New("product not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDemandUnavailable  = errors.New("demand view is unavailable")
)
