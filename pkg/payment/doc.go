// Package payment orchestrates checkout through an external payment
// gateway. It opens gateway orders priced from the plan catalog, verifies
// client-reported payments cryptographically, and activates the purchased
// subscription in the same transaction that records the payment.
//
// The gateway is abstracted behind a small interface; the Razorpay
// implementation lives in razorpay.go. Signature verification does not
// call the gateway at all, it recomputes the HMAC locally.
package payment
