// Package handlers provides the HTTP API handlers for convarr.
package handlers

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/convarr/convarr/internal/converr"
)

// apiError maps a taxonomy error onto an HTTP status. Suggestions and
// diagnostics travel in the error detail so callers can self-correct.
func apiError(err error) error {
	e, ok := converr.As(err)
	if !ok {
		return huma.Error500InternalServerError(err.Error())
	}

	msg := e.Error()
	switch e.Kind {
	case converr.KindUser:
		return huma.Error400BadRequest(msg)
	case converr.KindSystem:
		return huma.Error503ServiceUnavailable(msg)
	case converr.KindTimeout:
		return huma.Error504GatewayTimeout(msg)
	case converr.KindCollision:
		return huma.Error409Conflict(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}
