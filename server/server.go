package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/jrsteele09/epic-fhir-client/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	homeBuilder *sessions.Builder
	bulkBuilder *sessions.Builder
	home        *sessions.Slot
	bulk        *sessions.Slot
}

// New mounts one session per flow and registers the routes
func New(config config.Config, homeBuilder, bulkBuilder *sessions.Builder) (*Server, error) {
	if homeBuilder == nil || bulkBuilder == nil {
		return nil, fmt.Errorf("[Server New] session builders are required")
	}

	home, err := sessions.NewSlot(homeBuilder.New)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create home session: %w", err)
	}
	bulk, err := sessions.NewSlot(bulkBuilder.New)
	if err != nil {
		home.Close()
		return nil, fmt.Errorf("[Server New] failed to create bulk session: %w", err)
	}

	s := &Server{
		env:         config.GetEnv(),
		mux:         http.NewServeMux(),
		config:      config,
		homeBuilder: homeBuilder,
		bulkBuilder: bulkBuilder,
		home:        home,
		bulk:        bulk,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close tears down both sessions, stopping any export polling
func (s *Server) Close() {
	s.home.Close()
	s.bulk.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
