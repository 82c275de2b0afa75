package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"moneybook/internal/ledger"
)

// BankRow is one raw statement line as exported by a bank: everything is a
// string, amounts carry thousands separators, and exactly one of the two
// amount columns is populated.
type BankRow struct {
	Date        string
	Time        string
	Description string
	OutAmount   string
	InAmount    string
	Provider    string
}

// Normalized is a statement line after parsing: a positive amount in minor
// currency units, a direction, and the dedup hash identifying the line.
type Normalized struct {
	OccurredAt  time.Time
	Description string
	Provider    string
	Amount      int64
	Type        string
	Hash        string
}

// dateLayouts tried in order when parsing statement dates.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006-01-02",
	"2006.01.02",
}

// ParseAmount converts a bank-formatted amount string to minor currency
// units. exponent is the currency's decimal places (0 for KRW, 2 for USD).
// Empty and dash-only strings mean zero. An amount with more precision than
// the currency carries is rejected rather than silently rounded.
func ParseAmount(s string, exponent int32) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "₩")
	if s == "" || s == "-" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	shifted := d.Shift(exponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has more precision than the currency", s)
	}
	return shifted.IntPart(), nil
}

// DedupHash fingerprints a statement line from the fields a bank never
// reformats between exports. Re-uploading an overlapping statement produces
// identical hashes for the overlap, which is how duplicates are dropped.
func DedupHash(date, timeOfDay, outAmount, inAmount string) string {
	h := sha256.Sum256([]byte(date + "|" + timeOfDay + "|" + outAmount + "|" + inAmount))
	return hex.EncodeToString(h[:])
}

// Normalize parses one raw row. The populated amount column decides the
// direction: money out is an expense, money in is income. Rows with both or
// neither column populated are malformed.
func Normalize(row BankRow, exponent int32) (Normalized, error) {
	out, err := ParseAmount(row.OutAmount, exponent)
	if err != nil {
		return Normalized{}, err
	}
	in, err := ParseAmount(row.InAmount, exponent)
	if err != nil {
		return Normalized{}, err
	}
	if (out == 0) == (in == 0) {
		return Normalized{}, fmt.Errorf("row %q: exactly one of out/in must be set", row.Description)
	}

	n := Normalized{
		Description: strings.TrimSpace(row.Description),
		Provider:    row.Provider,
		Hash:        DedupHash(row.Date, row.Time, row.OutAmount, row.InAmount),
	}
	if out != 0 {
		n.Amount = out
		n.Type = ledger.TypeExpense
	} else {
		n.Amount = in
		n.Type = ledger.TypeIncome
	}

	ts := strings.TrimSpace(row.Date)
	if t := strings.TrimSpace(row.Time); t != "" {
		ts = ts + " " + t
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
			n.OccurredAt = parsed
			return n, nil
		}
	}
	return Normalized{}, fmt.Errorf("row %q: unparseable date %q", row.Description, ts)
}
