package ingest

import (
	"testing"

	"moneybook/internal/ledger"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		exponent int32
		want     int64
		wantErr  bool
	}{
		{"35,000", 0, 35000, false},
		{"1,234,567", 0, 1234567, false},
		{"₩5,000", 0, 5000, false},
		{"", 0, 0, false},
		{"-", 0, 0, false},
		{"  12000 ", 0, 12000, false},
		{"10.50", 2, 1050, false},
		{"10.5", 2, 1050, false},
		{"10.555", 2, 0, true},
		{"12.5", 0, 0, true},
		{"abc", 0, 0, true},
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in, tc.exponent)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q, %d) = %d, want error", tc.in, tc.exponent, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q, %d): %v", tc.in, tc.exponent, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q, %d) = %d, want %d", tc.in, tc.exponent, got, tc.want)
		}
	}
}

func TestDedupHashStable(t *testing.T) {
	a := DedupHash("2026-01-15", "09:30:00", "35,000", "")
	b := DedupHash("2026-01-15", "09:30:00", "35,000", "")
	if a != b {
		t.Fatal("identical rows must hash identically")
	}
	if len(a) != 64 {
		t.Fatalf("hash length %d, want 64 hex chars", len(a))
	}
	if c := DedupHash("2026-01-15", "09:30:00", "", "35,000"); c == a {
		t.Fatal("out vs in amounts must hash differently")
	}
	if c := DedupHash("2026-01-16", "09:30:00", "35,000", ""); c == a {
		t.Fatal("different dates must hash differently")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		row      BankRow
		wantType string
		wantAmt  int64
		wantErr  bool
	}{
		{
			"expense from out column",
			BankRow{Date: "2026-01-15", Time: "09:30:00", Description: "스타벅스 강남점", OutAmount: "6,000"},
			ledger.TypeExpense, 6000, false,
		},
		{
			"income from in column",
			BankRow{Date: "2026-01-25", Description: " 1월 급여 ", InAmount: "3,200,000"},
			ledger.TypeIncome, 3200000, false,
		},
		{
			"both columns populated",
			BankRow{Date: "2026-01-15", OutAmount: "100", InAmount: "100"},
			"", 0, true,
		},
		{
			"neither column populated",
			BankRow{Date: "2026-01-15", Description: "memo only"},
			"", 0, true,
		},
		{
			"bad date",
			BankRow{Date: "15/01/2026", OutAmount: "100"},
			"", 0, true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := Normalize(tc.row, 0)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Normalize = %+v, want error", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if n.Type != tc.wantType || n.Amount != tc.wantAmt {
				t.Fatalf("got %s/%d, want %s/%d", n.Type, n.Amount, tc.wantType, tc.wantAmt)
			}
			if n.Description != "" && n.Description[0] == ' ' {
				t.Fatalf("description not trimmed: %q", n.Description)
			}
			if n.OccurredAt.IsZero() {
				t.Fatal("OccurredAt not set")
			}
		})
	}
}
