package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// YearSheetName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func YearSheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
