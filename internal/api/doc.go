// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - POST /scrape runs one Sales Navigator export for the bearer's user.
//   - GET /session returns the caller's stored search parameters.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
