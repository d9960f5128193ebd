package reader

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnLetter encodes a 1-based column number in spreadsheet style:
// 1 → "A", 26 → "Z", 27 → "AA", 702 → "ZZ", 703 → "AAA".
// Input outside 1..excelize.MaxColumns yields "".
func ColumnLetter(column int) string {
	name, err := excelize.ColumnNumberToName(column)
	if err != nil {
		return ""
	}
	return name
}

// ColumnNumber decodes a spreadsheet column letter back to its 1-based number.
// It returns 0 for empty or malformed input.
func ColumnNumber(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0
	}
	n, err := excelize.ColumnNameToNumber(letter)
	if err != nil {
		return 0
	}
	return n
}
