// Package billing exposes the subscription, payment, referral, and finance
// services over HTTP. Routes are mounted on a chi router; the authenticated
// principal is expected in the request context, put there by upstream auth.
package billing
