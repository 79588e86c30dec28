package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerguard/internal/handler"
	"github.com/angeloszaimis/breakerguard/internal/introspect"
)

func setupRouter(guard *handler.GuardHandler, registry *circuitbreaker.Registry, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/", guard)
	mux.HandleFunc("/breakers", introspect.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Debug("Failed to write health response", slog.Any("err", err))
		}
	})

	return mux
}
