package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestWorkflowIDIsUniqueHex(t *testing.T) {
	a := WorkflowID("A", "B")
	b := WorkflowID("A", "B")
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected 64 hex chars, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatal("ids for identical parts must still differ")
	}
}

func TestNormalizeDTO(t *testing.T) {
	note := "  rent  "
	limit := decimal.RequireFromString("10.005")
	dto := struct {
		Source string
		Amount decimal.Decimal
		Note   *string
		Limit  *decimal.Decimal
		Tags   []string
		Empty  *string
	}{
		Source: "  acc-1 ",
		Amount: decimal.RequireFromString("99.999"),
		Note:   &note,
		Limit:  &limit,
		Tags:   []string{" a ", "b "},
	}
	NormalizeDTO(&dto)

	if dto.Source != "acc-1" || *dto.Note != "rent" {
		t.Fatalf("strings not trimmed: %q %q", dto.Source, *dto.Note)
	}
	if !dto.Amount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected 100.00, got %s", dto.Amount)
	}
	if !dto.Limit.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("expected 10.01, got %s", dto.Limit)
	}
	if dto.Tags[0] != "a" || dto.Tags[1] != "b" {
		t.Fatalf("slice entries not trimmed: %v", dto.Tags)
	}
	if dto.Empty != nil {
		t.Fatal("nil pointers must stay nil")
	}
}

func TestRoundMoney(t *testing.T) {
	if got := RoundMoney(decimal.RequireFromString("-1.005")); !got.Equal(decimal.RequireFromString("-1.01")) {
		t.Fatalf("unexpected rounding %s", got)
	}
}

func TestMoneyInRange(t *testing.T) {
	cases := map[string]bool{
		"0.01":                 true,
		"0.004":                false,
		"-1":                   false,
		"9999999999999999.99":  true,
		"9999999999999999.995": false,
		"10000000000000000":    false,
		"1e17":                 false,
	}
	for raw, want := range cases {
		if got := MoneyInRange(decimal.RequireFromString(raw)); got != want {
			t.Errorf("MoneyInRange(%s) = %v, want %v", raw, got, want)
		}
	}
}
