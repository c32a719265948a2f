package models

import "github.com/google/uuid"

// ensureID assigns a client-side UUID when the row has none, so inserts behave
// the same on Postgres and the SQLite test databases.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
