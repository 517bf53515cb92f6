package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.Handle("/metrics", s.app.MetricsService.Handler())

	// Benchmark runs
	mux.HandleFunc("/api/results", s.handleResultsRoute)
	mux.HandleFunc("/api/results/", s.handleResultRoute)

	// Attribute lookup
	mux.HandleFunc("/api/attributes", s.handleAttributesRoute)
	mux.HandleFunc("/api/attributes/reconcile", s.handleReconcileRoute)
	mux.HandleFunc("/api/attributes/tests", s.app.AttributesHandler.TestsViewHandler)

	// Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.JobsHandler)
	mux.HandleFunc("/api/scheduler/trigger", s.app.SchedulerHandler.TriggerJobHandler)

	// WebSocket
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleResultsRoute routes GET /api/results (list) and POST /api/results (upload)
func (s *Server) handleResultsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.ResultsHandler.ListRunsHandler,
		s.app.ResultsHandler.UploadRunHandler,
	)
}

// handleResultRoute routes GET and DELETE /api/results/{id}
func (s *Server) handleResultRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r,
		s.app.ResultsHandler.GetRunHandler,
		nil,
		s.app.ResultsHandler.DeleteRunHandler,
	)
}

// handleAttributesRoute routes GET (current lookup) and PUT (replace) /api/attributes
func (s *Server) handleAttributesRoute(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r,
		s.app.AttributesHandler.GetLookupHandler,
		nil,
		s.app.AttributesHandler.ReplaceLookupHandler,
		nil,
	)
}

// handleReconcileRoute routes GET (preview) and POST (apply) /api/attributes/reconcile
func (s *Server) handleReconcileRoute(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r,
		s.app.AttributesHandler.PreviewHandler,
		s.app.AttributesHandler.ApplyHandler,
		nil,
		nil,
	)
}
