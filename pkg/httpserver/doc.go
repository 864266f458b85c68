// Package httpserver wraps net/http with graceful shutdown, env-driven
// configuration, and a composable health endpoint.
package httpserver
