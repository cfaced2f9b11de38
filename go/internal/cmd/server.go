package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: config.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Register services
	registerServices(mux, services)

	// Add health check and metrics endpoints
	mux.Handle("GET /health", services.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server; websocket upgrades still arrive as HTTP/1.1
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	services.Relay.RegisterRoutes(mux)
	services.Rooms.RegisterRoutes(mux)
	services.Hits.RegisterRoutes(mux)
}
