// Package http holds the REST handlers for the SBP Lens API. Handlers
// stay thin: parse the request, call a service, render the result with
// chi/render. Anything that touches balance records, indicator math, or
// artifact files lives in the services layer.
//
// Failures are rendered as RFC 7807 problem documents through
// errors.ErrorHandler, which maps service AppError types to status
// codes (validation 400, not found 404, run conflict 409, parse
// failure 422).
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Validation Error",
//	    "status": 400,
//	    "detail": "Month must be a number between 1 and 12",
//	    "instance": "/api/indicators"
//	}
//
// Request IDs, structured logging, panic recovery, rate limiting, and
// CORS are applied by the middleware package before a handler runs.
package http
