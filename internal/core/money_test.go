package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		name  string
		input string
		cents int64
		valid bool
	}{
		{"whole euros", "12", 1200, true},
		{"one decimal", "7.5", 750, true},
		{"comma separator", "3,40", 340, true},
		{"single cent", "0.01", 1, true},
		{"rounds half up", "2.345", 235, true},
		{"surrounding spaces", "  9.90 ", 990, true},
		{"zero", "0", 0, true},
		{"negative", "-4", 0, false},
		{"not a number", "doze", 0, false},
		{"two separators", "1.000,50", 0, false},
		{"empty", "", 0, false},
		{"beyond int64 cents", "184467440737095516.17", 0, false},
		{"just past the limit", "92233720368547758.08", 0, false},
		{"largest amount", "92233720368547758.07", 9223372036854775807, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMoney(tc.input)
			if !tc.valid {
				if err == nil {
					t.Fatalf("ParseMoney(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q): %v", tc.input, err)
			}
			if got.Cents != tc.cents {
				t.Fatalf("ParseMoney(%q) = %d cents, want %d", tc.input, got.Cents, tc.cents)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	perHead := Euro(12)
	if got := perHead.Mul(3); got != Euro(36) {
		t.Fatalf("Mul: got %v", got)
	}
	if got := MinMoney(Euro(100), perHead.Mul(3)); got != Euro(36) {
		t.Fatalf("MinMoney cap: got %v", got)
	}
	if got := MinMoney(Euro(20), perHead.Mul(3)); got != Euro(20) {
		t.Fatalf("MinMoney below cap: got %v", got)
	}
	if got := Euro(10).Sub(Euro(25)).Abs(); got != Euro(15) {
		t.Fatalf("Abs: got %v", got)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "€0,00",
		5:      "€0,05",
		123450: "€1234,50",
		-2000:  "-€20,00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: expected %q, got %q", cents, want, got)
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money{Cents: 1999}
	got, err := MoneyFromDecimal(m.Decimal())
	if err != nil || got != m {
		t.Fatalf("expected %v, got %v (err=%v)", m, got, err)
	}
	if m.Decimal().String() != "19.99" {
		t.Fatalf("unexpected decimal %s", m.Decimal())
	}
}

func TestMoneyUnmarshalRejectsOverflow(t *testing.T) {
	for _, raw := range []string{`184467440737095516.17`, `"184467440737095516.17"`, `-92233720368547758.09`} {
		var m Money
		err := json.Unmarshal([]byte(raw), &m)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Unmarshal(%s) = %v (err=%v), want ErrInvalidAmount", raw, m, err)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`12.5`), &m); err != nil || m != Euro(12).Add(Money{Cents: 50}) {
		t.Fatalf("Unmarshal(12.5) = %v, err=%v", m, err)
	}
}
