// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/ferrant/orchid/pkg/handlers/delay"
	"github.com/ferrant/orchid/pkg/handlers/httprequest"
	loghandler "github.com/ferrant/orchid/pkg/handlers/log"
	"github.com/ferrant/orchid/pkg/registry"
)

// NewRegistry builds a handler registry with the native node capabilities
// registered: api_call, delay and notification.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeHandlers(logger, reg)

	return reg
}

func registerNativeHandlers(logger *slog.Logger, reg *registry.Registry) {
	if err := reg.RegisterFactory(httprequest.NewHandlerFactory(logger)); err != nil {
		panic(err)
	}

	if err := reg.RegisterFactory(delay.NewHandlerFactory(logger)); err != nil {
		panic(err)
	}

	if err := reg.RegisterFactory(loghandler.NewHandlerFactory(logger)); err != nil {
		panic(err)
	}
}
