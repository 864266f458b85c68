// Package subscription implements the plan catalog and the subscription
// lifecycle for clinic owners.
//
// The catalog is the single source of truth for plan prices and
// entitlements. A subscription copies the plan's feature set at creation
// time (the feature snapshot); entitlement checks read the snapshot and
// never re-derive from the catalog, so a plan as sold is immutable even if
// the catalog changes later.
//
// Lifecycle: a subscription becomes active only after payment verification,
// then ends as expired (lazily on read or via the batch sweep), cancelled
// (explicit), or replaced (superseded by a plan switch). The invariant "at
// most one active unexpired subscription per owner" is protected by running
// read-check-then-write sequences inside a storage transaction, backed by a
// partial unique index that turns write races into conflicts.
package subscription
