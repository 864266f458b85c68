// Package mongo wires the official MongoDB driver into the application:
// client construction from env config with connection retries, a readiness
// healthcheck, and a WithTransaction helper that the billing services use
// to keep read-check-then-write sequences atomic.
package mongo
