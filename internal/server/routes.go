package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (page event stream)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Pages
	mux.HandleFunc("/api/pages", s.handlePagesRoute)  // GET (list), POST (submit)
	mux.HandleFunc("/api/pages/", s.handlePageRoutes) // GET/DELETE /{id}, POST /{id}/retry, GET /{id}/links

	// API routes - Link search
	mux.HandleFunc("/api/links", s.app.LinkHandler.SearchLinksHandler) // GET ?q=

	// API routes - Scrape jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler) // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handlePagesRoute routes the pages collection endpoint by method
func (s *Server) handlePagesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.PageHandler.ListPagesHandler, s.app.PageHandler.SubmitPageHandler)
}

// handlePageRoutes routes page item requests to the appropriate handler
func (s *Server) handlePageRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/pages/{id}/links
	if r.Method == "GET" && strings.HasSuffix(path, "/links") {
		s.app.LinkHandler.ListLinksHandler(w, r)
		return
	}

	// POST /api/pages/{id}/retry
	if strings.HasSuffix(path, "/retry") {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.PageHandler.RetryPageHandler(w, r)
		return
	}

	// GET/DELETE /api/pages/{id}
	RouteResourceItem(w, r, s.app.PageHandler.GetPageHandler, nil, s.app.PageHandler.DeletePageHandler)
}
