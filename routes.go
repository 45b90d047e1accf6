package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stemstr/quotation/internal/auth"
)

var (
	corsAllowedMethods = []string{"GET", "POST", "DELETE", "PATCH", "OPTIONS"}
	corsAllowedHeaders = []string{"Content-Type", "Authorization", "True"}
)

// route binds a handler to a method and path. Routes with a permission are
// wrapped with requirePermission.
type route struct {
	method     string
	pattern    string
	permission string
	handler    http.HandlerFunc
}

func (h *handlers) routes() []route {
	return []route{
		{http.MethodGet, "/", "", h.handleIndex},
		{http.MethodGet, "/ready", "", h.handleReady},

		{http.MethodGet, "/quotes", "get:quotes", h.handleListQuotes},
		{http.MethodPost, "/quotes", "create:quote", h.handleCreateQuote},
		{http.MethodPatch, "/quotes/{id:[0-9]+}", "edit:quote", h.handleUpdateQuote},
		{http.MethodDelete, "/quotes/{id:[0-9]+}", "remove:quote", h.handleDeleteQuote},

		{http.MethodGet, "/persons", "get:persons", h.handleListPersons},
		{http.MethodPost, "/persons", "create:person", h.handleCreatePerson},
		{http.MethodPatch, "/persons/{id:[0-9]+}", "edit:person", h.handleUpdatePerson},
		{http.MethodDelete, "/persons/{id:[0-9]+}", "remove:person", h.handleDeletePerson},
	}
}

func newRouter(cfg Config, h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		AllowedMethods:     corsAllowedMethods,
		AllowedHeaders:     corsAllowedHeaders,
		AllowCredentials:   false,
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(corsHeaders)
	r.Use(metricsMiddleware)

	r.NotFound(h.handleNotFound)
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	for _, rt := range h.routes() {
		var handler http.Handler = rt.handler
		if rt.permission != "" {
			handler = h.requirePermission(rt.permission)(handler)
		}
		r.Method(rt.method, rt.pattern, handler)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// requirePermission authenticates the bearer token and checks it grants
// permission before calling next. The verified claims are put on the request
// context.
func (h *handlers) requirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := h.auth.Validate(r.Context(), r.Header.Get("Authorization"))
			if err == nil {
				err = auth.Authorize(permission, claims)
			}
			if err != nil {
				h.authError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// corsHeaders sets the allow headers on every response and answers
// preflight requests.
func corsHeaders(next http.Handler) http.Handler {
	var (
		headers = strings.Join(corsAllowedHeaders, ", ")
		methods = strings.Join(corsAllowedMethods, ", ")
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Access-Control-Allow-Methods", methods)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
