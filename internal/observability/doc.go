// Package observability provides logging and metrics support for the
// research digest service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("workflow_id", id).Msg("workflow started")
//
// Add workflow context to logger:
//
//	logger = observability.WithWorkflowContext(logger, workflowID, "search")
//
// # Metrics
//
// Create the metrics set once at startup and pass it to the components
// that record observations:
//
//	metrics := observability.NewMetrics()
//	metrics.WorkflowsStarted.WithLabelValues("search").Inc()
//
// Metrics are registered with the default Prometheus registry via
// promauto and exposed by the HTTP server on /metrics.
package observability
