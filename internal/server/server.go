// Package server exposes the upload/verify/commit pipeline and the receipt
// collection over HTTP.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finexhq/finex-server/internal/analytics"
	"github.com/finexhq/finex-server/internal/receipt"
	"github.com/finexhq/finex-server/internal/scanning"
	"github.com/finexhq/finex-server/internal/staging"
)

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Server handles HTTP requests for receipts, drafts and analytics
type Server struct {
	receipts  *receipt.Service
	scanner   scanning.Scanner
	storage   receipt.Storage
	drafts    *staging.Store
	analytics *analytics.Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(receipts *receipt.Service, scanner scanning.Scanner, storage receipt.Storage, drafts *staging.Store, reports *analytics.Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(receipts, scanner, storage, drafts, reports, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(receipts *receipt.Service, scanner scanning.Scanner, storage receipt.Storage, drafts *staging.Store, reports *analytics.Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		receipts:  receipts,
		scanner:   scanner,
		storage:   storage,
		drafts:    drafts,
		analytics: reports,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Finex"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux.
// Routes must be registered from most specific to least specific.
func (s *Server) registerRoutes() {
	// Upload: files in, staged drafts out
	s.mux.HandleFunc("POST /api/receipts/upload", s.requireAuth(s.handleUpload))

	// Draft sessions (verification staging)
	s.mux.HandleFunc("PATCH /api/drafts/{id}/items/{index}", s.requireAuth(s.handleEditDraftItem))
	s.mux.HandleFunc("DELETE /api/drafts/{id}/items/{index}", s.requireAuth(s.handleRemoveDraftItem))
	s.mux.HandleFunc("POST /api/drafts/{id}/items", s.requireAuth(s.handleAddDraftItem))
	s.mux.HandleFunc("POST /api/drafts/{id}/revert", s.requireAuth(s.handleRevertDraft))
	s.mux.HandleFunc("POST /api/drafts/{id}/confirm", s.requireAuth(s.handleConfirmDraft))
	s.mux.HandleFunc("PATCH /api/drafts/{id}", s.requireAuth(s.handleEditDraft))
	s.mux.HandleFunc("GET /api/drafts/{id}", s.requireAuth(s.handleGetDraft))
	s.mux.HandleFunc("DELETE /api/drafts/{id}", s.requireAuth(s.handleCancelDraft))
	s.mux.HandleFunc("GET /api/drafts", s.requireAuth(s.handleListDrafts))

	// Receipts
	s.mux.HandleFunc("GET /api/receipts/stats", s.requireAuth(s.handleStats))
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("PUT /api/receipts/{id}", s.requireAuth(s.handleUpdateReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleCreateReceipt))

	// Aggregate views
	s.mux.HandleFunc("GET /api/analytics", s.requireAuth(s.handleAnalytics))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(s.mux.ServeHTTP)(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
