// Package httpserver provides the shared HTTP server shell for the
// auction service: a chi router with standard middleware, liveness and
// readiness probes, drain/undrain endpoints for load-balancer
// coordination, optional pprof, and a separate metrics listener.
//
// Components plug in by implementing RouteRegistrar; the shell owns
// lifecycle (startup, drain, graceful shutdown) so the handlers only
// deal with requests.
package httpserver
