// Package http holds the route table and the handlers behind it. Handlers stay
// thin: they render a response or return an error for the error handler to
// translate.
//
// Every route is registered on a chi router that already carries the request
// pipeline, so unmatched paths and stub endpoints pass through the same
// filters, timing and logging as implemented ones.
package http
