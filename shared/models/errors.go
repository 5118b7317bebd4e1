package models

import "errors"

// Application-wide standard errors
var (
	// Plan / content errors (configuration, fatal for the story)
	ErrPlanNotFound = errors.New("story plan not found")
	ErrInvalidPlan  = errors.New("story plan is invalid")

	// Slice addressing
	ErrInvalidSliceID = errors.New("invalid slice id")

	// Generation backend configuration
	ErrMissingCredentials = errors.New("text generation backend credentials are not configured")

	// Delivery: every recovery attempt failed, the caller got the sentinel slice
	ErrSliceUnavailable = errors.New("slice could not be generated")
)
