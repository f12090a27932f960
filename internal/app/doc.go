// Package app wires the SBP Lens web server together: configuration,
// logging, OpenTelemetry, the WebSocket hub, the pipeline manager, and
// the chi router with its middleware chain.
//
// NewApplication builds the dependency graph top to bottom and returns
// an Application whose Run method owns the server lifecycle. Shutdown
// is signal driven: SIGINT or SIGTERM cancels a running pipeline,
// drains in-flight requests, closes WebSocket clients, and flushes the
// telemetry providers before Run returns.
//
// Initialization errors propagate to the caller; the package never
// calls os.Exit, so cmd/web controls the process exit code.
package app
