package enums

// ShadowStatus tracks the ERP side of a reservation: pending until the ERP
// confirms the hold, released once it is given back.
type ShadowStatus string

const (
	ShadowStatusPending  ShadowStatus = "pending"
	ShadowStatusReserved ShadowStatus = "reserved"
	ShadowStatusReleased ShadowStatus = "released"
)

var shadowStatuses = newSet("shadow status", ShadowStatusPending, ShadowStatusReserved, ShadowStatusReleased)

func (s ShadowStatus) String() string { return string(s) }
func (s ShadowStatus) IsValid() bool  { return shadowStatuses.has(s) }

func ParseShadowStatus(value string) (ShadowStatus, error) { return shadowStatuses.parse(value) }
