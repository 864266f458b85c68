// Package entitlement gates HTTP requests on the caller's subscription.
//
// The middleware chain resolves the authenticated principal to the clinic
// owner who pays the bill (staff accounts roll up to their hospital's
// owner), loads the owner's active subscription, and enforces the feature
// snapshot it carries: no subscription means payment required, and the
// patient quota blocks creation past the plan's limit.
package entitlement
