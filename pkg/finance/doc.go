// Package finance provides read-only revenue reporting over the payment
// order records. Reports are computed with MongoDB aggregation pipelines
// on demand; nothing is cached or materialized.
package finance
