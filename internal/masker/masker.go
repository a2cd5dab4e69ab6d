package masker

import "context"

// Result contains the outcome returned by the detection/masking service.
type Result struct {
	// MaskedImage is the redacted image, same encoding family as the input.
	MaskedImage []byte
	ContentType string
	// Regions is the number of redacted areas the service found.
	Regions int
	Message string
}

// Client exposes the subset of the masking service used by the upload flow.
// Retry, timeout, and authentication are the implementation's responsibility;
// callers issue exactly one Mask per user action.
type Client interface {
	Mask(ctx context.Context, contentType string, image []byte) (*Result, error)
}
