// Package email delivers transactional notifications: subscription
// activation receipts, referral invites, and reward confirmations. The
// EmailSender interface hides the delivery channel; production uses
// Postmark, development logs instead of sending. All sends in this codebase
// go through the background dispatcher, so delivery failures never block
// the billing write that triggered them.
package email
