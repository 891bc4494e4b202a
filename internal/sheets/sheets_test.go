package sheets

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/core"
)

func TestYearSheetName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Journal", 2024, "2024 Journal"},
		{"2023 Journal", 2024, "2023 Journal"},
		{"  Journal ", 2025, "2025 Journal"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, YearSheetName(tt.base, tt.year), tt.base)
	}
}

func TestJournalRowValues(t *testing.T) {
	row := JournalRow{
		Date:          core.NewDate(2024, time.January, 5),
		Op:            "created",
		TransactionID: "abc",
		Type:          core.TypeExpense,
		Category:      "food",
		Amount:        12.345,
		OwnerEmail:    "a@b.co",
		RecordedAt:    time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	got := row.Values()
	assert.Len(t, got, len(Header))
	assert.Equal(t, "2024-01-05", got[0])
	assert.Equal(t, "expense", got[3])
	assert.Equal(t, 12.35, got[5])
	assert.Equal(t, "2024-01-05T10:00:00Z", got[8])

	row.Amount = core.Amount(math.NaN())
	assert.Equal(t, "", row.Values()[5])
}
