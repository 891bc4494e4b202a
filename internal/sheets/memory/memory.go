package memory

import (
	"context"
	"sync"

	"fintrack/internal/sheets"
)

// Journal keeps exported rows in memory, grouped by sheet name.
type Journal struct {
	mu     sync.Mutex
	base   string
	sheets map[string][]sheets.JournalRow
}

var _ sheets.JournalWriter = (*Journal)(nil)

func New(base string) *Journal {
	if base == "" {
		base = "Journal"
	}
	return &Journal{base: base, sheets: make(map[string][]sheets.JournalRow)}
}

func (j *Journal) AppendRows(_ context.Context, rows []sheets.JournalRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range rows {
		name := sheets.YearSheetName(j.base, r.Date.Year())
		j.sheets[name] = append(j.sheets[name], r)
	}
	return nil
}

// Rows returns a copy of the rows of one sheet.
func (j *Journal) Rows(sheet string) []sheets.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.JournalRow(nil), j.sheets[sheet]...)
}

// Len counts rows across all sheets.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, rows := range j.sheets {
		n += len(rows)
	}
	return n
}
