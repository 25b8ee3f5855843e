// Package api assembles the HTTP routes and middleware chain.
package api

import (
	"net/http"

	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Deps are the handlers served by the router. Documents and Jobs are
// optional.
type Deps struct {
	Ingest       *handlers.IngestHandler
	Transactions *handlers.TransactionsHandler
	Documents    *handlers.DocumentsHandler
	Jobs         *handlers.JobsHandler
	// DefaultUserID is used when a request carries no X-User-ID header.
	DefaultUserID string
}

// method restricts h to one HTTP method.
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// NewRouter registers every endpoint and wraps them in the middleware chain.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ingest", method(http.MethodPost, deps.Ingest.Ingest))
	mux.HandleFunc("/api/transactions", method(http.MethodGet, deps.Transactions.ListTransactions))
	mux.HandleFunc("/api/summary", method(http.MethodGet, deps.Transactions.Summary))
	mux.HandleFunc("/api/recommendations", method(http.MethodPost, deps.Transactions.Recommendations))
	if deps.Documents != nil {
		mux.HandleFunc("/api/documents", method(http.MethodGet, deps.Documents.ListDocuments))
		mux.HandleFunc("/api/documents/", method(http.MethodDelete, deps.Documents.DeleteDocument))
	}
	if deps.Jobs != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, deps.Jobs.ListJobs))
		mux.HandleFunc("/api/jobs/", method(http.MethodGet, deps.Jobs.GetJob))
	}
	mux.HandleFunc("/health", handlers.Health)

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(deps.DefaultUserID, "/health")(mux),
				),
			),
		),
	)
}
