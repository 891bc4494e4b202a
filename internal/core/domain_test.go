package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"income", TypeIncome, true},
		{"Income", TypeIncome, true},
		{"expense", TypeExpense, true},
		{"EXPENSE", TypeExpense, true},
		{"expanse", TypeExpense, true},
		{" Expanse ", TypeExpense, true},
		{"transfer", TypeUnknown, false},
		{"", TypeUnknown, false},
	}
	for _, tc := range cases {
		got, err := ParseType(tc.in)
		if got != tc.want {
			t.Fatalf("ParseType(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if tc.ok && err != nil {
			t.Fatalf("ParseType(%q) unexpected error %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidType) {
			t.Fatalf("ParseType(%q) expected ErrInvalidType, got %v", tc.in, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-01-05", NewDate(2024, time.January, 5), true},
		{"2024-03-15T00:00:00.000Z", NewDate(2024, time.March, 15), true},
		{"2024-03-15T23:30:00+02:00", NewDate(2024, time.March, 15), true},
		{"15/03/2024", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error %v", tc.in, err)
			}
			if !got.Equal(tc.want.Time) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		} else if err == nil {
			t.Fatalf("ParseDate(%q) expected error", tc.in)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:     TypeExpense,
		Category: "food",
		Amount:   50,
		Date:     NewDate(2024, time.January, 5),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*Transaction)
		want   error
	}{
		{func(tx *Transaction) { tx.Type = TypeUnknown }, ErrInvalidType},
		{func(tx *Transaction) { tx.Category = "  " }, ErrEmptyCategory},
		{func(tx *Transaction) { tx.Amount = -1 }, ErrInvalidAmount},
		{func(tx *Transaction) { tx.Amount = Amount(nan()) }, ErrInvalidAmount},
		{func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{func(tx *Transaction) { tx.Description = strings.Repeat("x", MaxDescriptionLength+1) }, ErrDescriptionTooLong},
	}
	for i, tc := range bads {
		tx := good
		tc.mutate(&tx)
		if err := tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestApplyKeepsOwner(t *testing.T) {
	tx := Transaction{ID: "1", OwnerEmail: "a@b.co", OwnerName: "A", Type: TypeIncome, Category: "salary", Amount: 10}
	got := tx.Apply(TransactionUpdate{Type: TypeExpense, Category: "food", Amount: 3, Date: NewDate(2024, time.May, 1)})
	if got.ID != "1" || got.OwnerEmail != "a@b.co" || got.OwnerName != "A" {
		t.Fatalf("identity changed: %+v", got)
	}
	if got.Type != TypeExpense || got.Category != "food" || got.Amount != 3 {
		t.Fatalf("fields not applied: %+v", got)
	}
}

func TestTransactionJSONDecoding(t *testing.T) {
	payload := `[
		{"_id":"a1","type":"Expanse","category":"food","amount":"50","date":"2024-01-05","email":"u@x.io","name":"U"},
		{"_id":"a2","type":"income","category":"salary","amount":"abc","date":"2024-02-01T00:00:00.000Z"},
		{"_id":"a3","type":"gift","category":"misc","amount":7.5,"date":"2024-03-01"}
	]`
	var txs []Transaction
	if err := json.Unmarshal([]byte(payload), &txs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if txs[0].Type != TypeExpense || txs[0].Amount != 50 || txs[0].OwnerEmail != "u@x.io" {
		t.Fatalf("unexpected first record: %+v", txs[0])
	}
	if !txs[1].Amount.IsNaN() {
		t.Fatalf("expected NaN amount, got %v", txs[1].Amount)
	}
	if txs[1].Month() != time.February {
		t.Fatalf("expected February, got %v", txs[1].Month())
	}
	if txs[2].Type != TypeUnknown || txs[2].Amount != 7.5 {
		t.Fatalf("unexpected third record: %+v", txs[2])
	}
}

func TestDateDecodingIsTolerant(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Date
	}{
		{"day", `{"date":"2024-03-05"}`, NewDate(2024, time.March, 5)},
		{"missing", `{}`, Date{}},
		{"null", `{"date":null}`, Date{}},
		{"empty", `{"date":""}`, Date{}},
		{"unreadable", `{"date":"03/04/2024"}`, Date{}},
		{"number", `{"date":20240305}`, Date{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tx Transaction
			if err := json.Unmarshal([]byte(tc.payload), &tx); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !tx.Date.Equal(tc.want.Time) {
				t.Fatalf("got %v, want %v", tx.Date, tc.want)
			}
			if tc.want.IsZero() {
				if tx.Month() != 0 {
					t.Fatalf("undated record reports month %v", tx.Month())
				}
				if err := tx.Date.Validate(); !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("expected ErrInvalidDate, got %v", err)
				}
			}
		})
	}
}

func TestTransactionJSONEncoding(t *testing.T) {
	tx := Transaction{Type: TypeExpense, Category: "food", Amount: Amount(nan()), Date: NewDate(2024, time.January, 5)}
	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	for _, want := range []string{`"type":"expense"`, `"amount":null`, `"date":"2024-01-05"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"_id"`) {
		t.Fatalf("empty id must be omitted: %s", s)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
		ok   bool
	}{
		{"50", 50, true},
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{"0", 0, true},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseAmount(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseAmount(%q) expected error", tc.in)
		}
	}
}
