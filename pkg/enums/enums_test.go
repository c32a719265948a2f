package enums

import "testing"

func TestMovementTypeSignMatches(t *testing.T) {
	tests := []struct {
		movement MovementType
		qty      int
		want     bool
	}{
		{MovementTypeReservation, -3, true},
		{MovementTypeReservation, 3, false},
		{MovementTypeRelease, 3, true},
		{MovementTypeRelease, -3, false},
		{MovementTypeFulfillment, -1, true},
		{MovementTypeFulfillment, 0, false},
		{MovementTypeAdjustment, -5, true},
		{MovementTypeAdjustment, 5, true},
		{MovementTypeAdjustment, 0, false},
		{MovementTypeExternalSync, 0, true},
		{MovementTypeExternalSync, -2, false},
		{MovementType("transfer"), 1, false},
	}
	for _, tt := range tests {
		if got := tt.movement.SignMatches(tt.qty); got != tt.want {
			t.Fatalf("%s.SignMatches(%d) = %v, want %v", tt.movement, tt.qty, got, tt.want)
		}
	}
}

func TestReservationStatusTerminal(t *testing.T) {
	if ReservationStatusActive.IsTerminal() {
		t.Fatal("active must not be terminal")
	}
	for _, status := range []ReservationStatus{ReservationStatusReleased, ReservationStatusFulfilled, ReservationStatusExpired} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	if ReservationStatus("bogus").IsTerminal() {
		t.Fatal("unknown status must not be terminal")
	}
}

func TestParseHelpers(t *testing.T) {
	if got, err := ParseReservationStatus("expired"); err != nil || got != ReservationStatusExpired {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseReservationStatus("paused"); err == nil {
		t.Fatal("expected error for unknown reservation status")
	}
	if got, err := ParseShadowStatus("pending"); err != nil || got != ShadowStatusPending {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseMovementType("transfer"); err == nil {
		t.Fatal("expected error for unknown movement type")
	}
	if got, err := ParseMemberRole("admin"); err != nil || got != MemberRoleAdmin {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if got, err := ParseOutboxEventType("reservation_expired"); err != nil || got != EventReservationExpired {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
}

func TestParseErrorNamesTheEnum(t *testing.T) {
	_, err := ParseOutboxAggregateType("order")
	if err == nil || err.Error() != `invalid aggregate type "order"` {
		t.Fatalf("unexpected error %v", err)
	}
	if OutboxDLQErrorReason("timeout").IsValid() || !OutboxDLQReasonMaxAttempts.IsValid() {
		t.Fatal("dead letter reason validation is wrong")
	}
}
