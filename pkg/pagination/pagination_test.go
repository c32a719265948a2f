package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC), ID: uuid.New()}

	encoded := cursor.String()
	require.NotContains(t, encoded, "=")
	require.NotContains(t, encoded, "+")

	parsed, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.True(t, parsed.CreatedAt.Equal(cursor.CreatedAt))
	require.Equal(t, cursor.ID, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, parsed)

	for _, value := range []string{"%%%", "bm9waXBl", Cursor{}.String()[:8]} {
		_, err := ParseCursor(value)
		require.Error(t, err, value)
	}
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, DefaultLimit, NormalizeLimit(-4))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	require.Equal(t, 7, NormalizeLimit(7))
}

func TestSplit(t *testing.T) {
	base := time.Now().UTC()
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Split(rows, 3, identity)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	require.Equal(t, rows[2].ID, next.ID)

	page, next = Split(rows[:3], 3, identity)
	require.Len(t, page, 3)
	require.Nil(t, next)
}
