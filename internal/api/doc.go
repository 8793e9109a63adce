// Package api implements the HTTP control surface of the batch engine:
// routing, request decoding and validation, and response formatting.
// It translates HTTP requests into processor operations and processor
// state back into JSON responses.
package api
