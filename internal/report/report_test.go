package report

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func tx(typ core.Type, category string, amount float64, date string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{Type: typ, Category: category, Amount: core.Amount(amount), Date: d}
}

func TestMonthlyTotals(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "food", 50, "2024-01-05"),
		tx(core.TypeIncome, "salary", 1000, "2024-01-20"),
	}

	got := MonthlyTotals(records)

	require.Len(t, got, 12)
	assert.Equal(t, "Jan", got[0].Label)
	assert.Equal(t, core.Amount(1000), got[0].Income)
	assert.Equal(t, core.Amount(50), got[0].Expense)
	for i := 1; i < 12; i++ {
		assert.Zero(t, got[i].Income, "month %d", i+1)
		assert.Zero(t, got[i].Expense, "month %d", i+1)
	}
	assert.Equal(t, "Dec", got[11].Label)
}

func TestMonthlyTotalsEmptyInput(t *testing.T) {
	got := MonthlyTotals(nil)
	require.Len(t, got, 12)
	for _, m := range got {
		assert.Zero(t, m.Income)
		assert.Zero(t, m.Expense)
	}
}

func TestMonthlyTotalsMergesYears(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "rent", 100, "2023-03-01"),
		tx(core.TypeExpense, "rent", 200, "2024-03-01"),
	}
	got := MonthlyTotals(records)
	assert.Equal(t, core.Amount(300), got[2].Expense)
}

func TestMonthlyTotalsLegacyExpenseSpelling(t *testing.T) {
	typ, err := core.ParseType("Expanse")
	require.NoError(t, err)
	got := MonthlyTotals([]core.Transaction{tx(typ, "food", 75, "2024-06-10")})
	assert.Equal(t, core.Amount(75), got[5].Expense)
}

func TestMonthlyTotalsConservesSums(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeIncome, "salary", 1000, "2024-01-20"),
		tx(core.TypeIncome, "bonus", 250, "2024-07-02"),
		tx(core.TypeExpense, "food", 40, "2024-07-03"),
		tx(core.TypeExpense, "travel", 60, "2023-12-30"),
	}
	var income, expense core.Amount
	for _, m := range MonthlyTotals(records) {
		income += m.Income
		expense += m.Expense
	}
	assert.Equal(t, core.Amount(1250), income)
	assert.Equal(t, core.Amount(100), expense)
}

func TestUndatedRecordsBelongToNoMonth(t *testing.T) {
	payload := `[
		{"type":"income","category":"a","amount":10,"date":"2024-03-01"},
		{"type":"income","category":"b","amount":5},
		{"type":"income","category":"c","amount":2,"date":null},
		{"type":"income","category":"d","amount":1,"date":"03/04/2024"}
	]`
	var records []core.Transaction
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Len(t, records, 4)

	got := MonthlyTotals(records)
	assert.Zero(t, got[0].Income, "undated records must not land in January")
	assert.Equal(t, core.Amount(10), got[2].Income)

	assert.Empty(t, FilterByMonth(records, time.January))
	march := FilterByMonth(records, time.March)
	require.Len(t, march, 1)
	assert.Equal(t, "a", march[0].Category)
}

func TestCategoryTotals(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "food", 10, "2024-01-01"),
		tx(core.TypeExpense, "rent", 500, "2024-01-02"),
		tx(core.TypeExpense, "food", 15, "2024-01-03"),
	}

	got := CategoryTotals(records)

	assert.Equal(t, []core.CategoryTotal{
		{Name: "food", Total: 25},
		{Name: "rent", Total: 500},
	}, got)
}

func TestCategoryTotalsIsCaseSensitive(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "Food", 10, "2024-01-01"),
		tx(core.TypeExpense, "food", 5, "2024-01-02"),
	}
	got := CategoryTotals(records)
	require.Len(t, got, 2)
	assert.Equal(t, "Food", got[0].Name)
	assert.Equal(t, "food", got[1].Name)
}

func TestCategoryTotalsEmpty(t *testing.T) {
	assert.Empty(t, CategoryTotals(nil))
}

func TestCategoryTotalsAfterExpenseFilter(t *testing.T) {
	typ, err := core.ParseType("Expanse")
	require.NoError(t, err)
	records := []core.Transaction{
		tx(typ, "food", 75, "2024-02-01"),
		tx(core.TypeIncome, "salary", 900, "2024-02-01"),
	}
	got := CategoryTotals(FilterByType(records, core.TypeExpense))
	assert.Equal(t, []core.CategoryTotal{{Name: "food", Total: 75}}, got)
}

func TestNaNPropagates(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "food", 10, "2024-04-01"),
		tx(core.TypeExpense, "food", math.NaN(), "2024-04-02"),
	}
	assert.True(t, CategoryTotals(records)[0].Total.IsNaN())
	assert.True(t, MonthlyTotals(records)[3].Expense.IsNaN())
}

func TestTotals(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeIncome, "salary", 1000, "2024-01-20"),
		tx(core.TypeExpense, "food", 50, "2024-01-05"),
		tx(core.TypeExpense, "rent", 400, "2024-02-05"),
	}
	assert.Equal(t, core.Overview{TotalIncome: 1000, TotalExpense: 450, TotalBalance: 550}, Totals(records))
}

func TestCategoryTotalExactMatch(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "food", 10, "2024-01-01"),
		tx(core.TypeIncome, "food", 4, "2024-01-01"),
		tx(core.TypeExpense, "Food", 99, "2024-01-01"),
	}
	assert.Equal(t, core.Amount(14), CategoryTotal(records, "food"))
}

func TestFilterByType(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "a", 1, "2024-01-01"),
		tx(core.TypeIncome, "b", 2, "2024-01-01"),
		tx(core.TypeExpense, "c", 3, "2024-01-01"),
	}
	once := FilterByType(records, core.TypeExpense)
	require.Len(t, once, 2)
	assert.Equal(t, "a", once[0].Category)
	assert.Equal(t, "c", once[1].Category)
	assert.Equal(t, once, FilterByType(once, core.TypeExpense))
}

func TestFilterByMonth(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "a", 1, "2024-03-01"),
		tx(core.TypeIncome, "b", 2, "2024-04-01"),
		tx(core.TypeExpense, "c", 3, "2023-03-31"),
	}

	t.Run("no month returns input", func(t *testing.T) {
		got := FilterByMonth(records, 0)
		require.Len(t, got, len(records))
		assert.Same(t, &records[0], &got[0])
	})

	t.Run("selected month", func(t *testing.T) {
		got := FilterByMonth(records, time.March)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Category)
		assert.Equal(t, "c", got[1].Category)
	})
}

func TestSortTransactions(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "first", 10, "2024-01-01"),
		tx(core.TypeExpense, "big", 99, "2024-01-02"),
		tx(core.TypeExpense, "second", 10, "2024-03-01"),
		tx(core.TypeExpense, "nan", math.NaN(), "2024-02-01"),
	}

	t.Run("amount descending and stable", func(t *testing.T) {
		got := SortTransactions(records, SortByAmount)
		names := make([]string, len(got))
		for i, r := range got {
			names[i] = r.Category
		}
		assert.Equal(t, []string{"big", "first", "second", "nan"}, names)
	})

	t.Run("date descending", func(t *testing.T) {
		got := SortTransactions(records, SortByDate)
		names := make([]string, len(got))
		for i, r := range got {
			names[i] = r.Category
		}
		assert.Equal(t, []string{"second", "nan", "big", "first"}, names)
	})

	t.Run("input untouched", func(t *testing.T) {
		_ = SortTransactions(records, SortByAmount)
		assert.Equal(t, "first", records[0].Category)
	})
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("Amount")
	require.NoError(t, err)
	assert.Equal(t, SortByAmount, k)

	k, err = ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByDate, k)

	_, err = ParseSortKey("category")
	assert.Error(t, err)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("")
	require.NoError(t, err)
	assert.Equal(t, time.Month(0), m)

	m, err = ParseMonth("03")
	require.NoError(t, err)
	assert.Equal(t, time.March, m)

	_, err = ParseMonth("13")
	assert.Error(t, err)
	_, err = ParseMonth("march")
	assert.Error(t, err)
}

func TestComposeEmpty(t *testing.T) {
	got := Compose(nil, Options{Type: core.TypeIncome, Month: time.May})
	assert.True(t, got.Empty)
	assert.Nil(t, got.Categories)
	assert.Nil(t, got.Monthly)
}

func TestComposeExpenseAllMonths(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeExpense, "food", 50, "2024-01-05"),
		tx(core.TypeIncome, "salary", 1000, "2024-01-20"),
		tx(core.TypeExpense, "rent", 400, "2024-02-01"),
	}

	got := Compose(records, Options{Type: core.TypeExpense})

	assert.False(t, got.Empty)
	assert.Equal(t, "Expense by Category", got.Title)
	assert.Equal(t, ExpenseColor, got.BaseColor)
	assert.Equal(t, []Slice{
		{Name: "food", Value: 50, Color: "#9333EA"},
		{Name: "rent", Value: 400, Color: "#EF4444"},
	}, got.Categories)
	require.Len(t, got.Monthly, 12)
	assert.Equal(t, core.Amount(1000), got.Monthly[0].Income)
	assert.Equal(t, IncomeColor, got.BarColors["income"])
	assert.Equal(t, ExpenseColor, got.BarColors["expense"])
}

func TestComposeIncomeSelectedMonth(t *testing.T) {
	records := []core.Transaction{
		tx(core.TypeIncome, "salary", 1000, "2024-01-20"),
		tx(core.TypeExpense, "food", 50, "2024-01-05"),
		tx(core.TypeIncome, "bonus", 300, "2024-02-01"),
	}

	got := Compose(records, Options{Type: core.TypeIncome, Month: time.January})

	assert.Equal(t, "Income by Category", got.Title)
	assert.Equal(t, []Slice{{Name: "salary", Value: 1000, Color: "#06B6D4"}}, got.Categories)
	require.Len(t, got.Monthly, 1)
	assert.Equal(t, "Jan", got.Monthly[0].Label)
	assert.Equal(t, core.Amount(1000), got.Monthly[0].Income)
	assert.Equal(t, core.Amount(50), got.Monthly[0].Expense)
}

func TestComposePaletteWraps(t *testing.T) {
	var records []core.Transaction
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, tx(core.TypeExpense, c, 1, "2024-01-01"))
	}
	got := Compose(records, Options{Type: core.TypeExpense})
	require.Len(t, got.Categories, 7)
	assert.Equal(t, ExpenseSlices[0], got.Categories[5].Color)
	assert.Equal(t, ExpenseSlices[1], got.Categories[6].Color)
}

func TestComposeNoMatchesIsNotEmptyState(t *testing.T) {
	records := []core.Transaction{tx(core.TypeIncome, "salary", 10, "2024-01-01")}
	got := Compose(records, Options{Type: core.TypeExpense, Month: time.June})
	assert.False(t, got.Empty)
	assert.Empty(t, got.Categories)
	require.Len(t, got.Monthly, 1)
}
