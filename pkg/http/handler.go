package http

import "github.com/labstack/echo/v4"

// Handler registers a set of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Handlers registers each non-nil member in order.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
