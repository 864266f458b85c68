// Package queue is a small background task dispatcher used for
// fire-and-forget work: notification emails and the subscription expiry
// sweep. Tasks are persisted through the Storage interface, claimed by a
// polling worker, and retried with linear backoff until MaxRetries is
// exhausted. Failure of a task is observably inert to the request that
// enqueued it.
package queue
