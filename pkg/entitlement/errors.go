package entitlement

import "errors"

var (
	ErrNoPrincipal      = errors.New("no authenticated principal in context")
	ErrOwnerNotResolved = errors.New("could not resolve a billing owner for the principal")
)
