package enums

// ReservationStatus maps to the reservation_status enum in Postgres. Active is
// the only state a reservation can leave.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

var reservationStatuses = newSet("reservation status",
	ReservationStatusActive,
	ReservationStatusReleased,
	ReservationStatusFulfilled,
	ReservationStatusExpired,
)

func (s ReservationStatus) String() string { return string(s) }
func (s ReservationStatus) IsValid() bool  { return reservationStatuses.has(s) }

// IsTerminal reports whether the reservation has left the active state for good.
func (s ReservationStatus) IsTerminal() bool {
	return s.IsValid() && s != ReservationStatusActive
}

func ParseReservationStatus(value string) (ReservationStatus, error) {
	return reservationStatuses.parse(value)
}
