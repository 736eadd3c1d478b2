// Package observability builds the service's zap loggers and carries
// request-scoped log fields (request id, user id) through a context.
package observability
