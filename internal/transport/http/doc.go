// Package http exposes the service layer over a chi router. Handlers are
// thin: they bind and validate requests, call one service method, and render
// the result or a structured error response. No domain logic lives here.
package http
