// Package referral implements the invite-a-clinic bounty program. An owner
// invites a colleague by email; when the invitee registers and later buys a
// plan, the referrer earns a fixed reward that depends on the purchased
// plan. Rewards are credited exactly once per referral.
package referral
