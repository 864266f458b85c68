// Package redis connects to the Redis server backing the rate limiter.
// Connect retries until the server is reachable or the attempt budget runs
// out, and Healthcheck plugs into the HTTP readiness probe.
package redis
