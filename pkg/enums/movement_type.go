package enums

// MovementType maps to the movement_type enum in Postgres.
type MovementType string

const (
	MovementTypeReservation  MovementType = "reservation"
	MovementTypeRelease      MovementType = "release"
	MovementTypeAdjustment   MovementType = "adjustment"
	MovementTypeFulfillment  MovementType = "fulfillment"
	// MovementTypeExternalSync audits an ERP mirror attempt; the local
	// reservation entry already carries the quantity.
	MovementTypeExternalSync MovementType = "external_sync"
)

var movementTypes = newSet("movement type",
	MovementTypeReservation,
	MovementTypeRelease,
	MovementTypeAdjustment,
	MovementTypeFulfillment,
	MovementTypeExternalSync,
)

func (m MovementType) String() string { return string(m) }
func (m MovementType) IsValid() bool  { return movementTypes.has(m) }

// SignMatches reports whether a signed quantity is consistent with the movement type.
// Reservations and fulfillments take stock away (negative), releases return it
// (positive), adjustments may go either way but never by zero, and external
// syncs never move stock.
func (m MovementType) SignMatches(quantity int) bool {
	switch m {
	case MovementTypeReservation, MovementTypeFulfillment:
		return quantity < 0
	case MovementTypeRelease:
		return quantity > 0
	case MovementTypeAdjustment:
		return quantity != 0
	case MovementTypeExternalSync:
		return quantity == 0
	}
	return false
}

func ParseMovementType(value string) (MovementType, error) { return movementTypes.parse(value) }

// MovementStatus records whether the audited operation went through.
type MovementStatus string

const (
	MovementStatusCompleted MovementStatus = "completed"
	MovementStatusFailed    MovementStatus = "failed"
)

// IsValid reports whether the value is a known MovementStatus.
func (m MovementStatus) IsValid() bool {
	return m == MovementStatusCompleted || m == MovementStatusFailed
}
