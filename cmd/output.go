package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/ledger"
)

var flagJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON responses")
}

// emit prints v as indented JSON when --json is set and otherwise calls
// the human-readable printer.
func emit(v any, human func()) error {
	if !flagJSON {
		human()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDay accepts YYYY-MM-DD; an empty string is the zero time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return ledger.ParseDate(s)
}

func parseAmountFlag(name, s string) (decimal.Decimal, error) {
	d, err := ledger.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func center(s string, w int) string {
	if len(s) >= w {
		return s
	}
	pad := (w - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func formatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return "(" + ledger.FormatAmount(d.Neg()) + ")"
	}
	return ledger.FormatAmount(d)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-2] + ".."
	}
	return s
}
