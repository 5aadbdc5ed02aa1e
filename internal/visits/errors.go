package visits

import "errors"

var (
	// ErrShopNotFound means the shop id does not exist.
	ErrShopNotFound = errors.New("shop not found")

	// ErrNoOpenAttempt means a checkpoint or submission arrived before
	// StartAudit opened an attempt on the shop.
	ErrNoOpenAttempt = errors.New("no audit started yet")

	// ErrNotAssigned means the shop's assignment for the acting role does
	// not match the acting user.
	ErrNotAssigned = errors.New("this shop is not assigned to you")

	// ErrRoleCannotVisit means the acting role has no visit lifecycle
	// (managers and back-office roles).
	ErrRoleCannotVisit = errors.New("role cannot record shop visits")
)
