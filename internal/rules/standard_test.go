package rules

import (
	"testing"

	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluate(t *testing.T, id ID, records ...model.Record) Result {
	t.Helper()
	for _, rule := range Standard() {
		if rule.ID == id {
			results := rule.Evaluate(records, rule.Policy)
			require.Len(t, results, 1)
			return results[0]
		}
	}
	t.Fatalf("no standard rule %s", id)
	return Result{}
}

func TestTotalsBalance(t *testing.T) {
	tests := []struct {
		name   string
		record model.Record
		wantOK bool
	}{
		{"balanced", model.NewRecord("total_excl_vat", 100, "vat_amount", 5, "total_incl_vat", 105), true},
		{"within tolerance", model.NewRecord("total_excl_vat", 100, "vat_amount", 5, "total_incl_vat", 105.009), true},
		{"camel case", model.NewRecord("totalExclVat", "200", "vatAmount", "10", "totalInclVat", "215"), false},
		{"missing operand skipped", model.NewRecord("total_excl_vat", 100, "total_incl_vat", 999), true},
		{"zero operand skipped", model.NewRecord("total_excl_vat", 100, "vat_amount", 0, "total_incl_vat", 999), true},
		{"non numeric skipped", model.NewRecord("total_excl_vat", "n/a", "vat_amount", 5, "total_incl_vat", 999), true},
		{"off by more than a cent", model.NewRecord("total_excl_vat", 100, "vat_amount", 5, "total_incl_vat", 105.02), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluate(t, TotalsBalance, tt.record)
			assert.Equal(t, tt.wantOK, got.OK)
			if !tt.wantOK {
				assert.Equal(t, "Invoice totals do not balance. Ensure total_excl_vat + vat_amount = total_incl_vat (±0.01)", got.Explanation)
				assert.NotNil(t, got.Expected)
			}
		})
	}
}

func TestExampleLine_OnlyLineMath(t *testing.T) {
	bad := model.NewRecord(
		"total_excl_vat", 100, "vat_amount", 5, "total_incl_vat", 200,
		"qty", 2, "unit_price", 10, "line_total", 25,
		"issue_date", "19/10/2026", "currency", "EUR",
	)

	for _, rule := range Standard() {
		t.Run(string(rule.ID), func(t *testing.T) {
			results := rule.Evaluate([]model.Record{bad}, rule.Policy)
			require.Len(t, results, 1)
			require.False(t, results[0].OK)
			if rule.ID == LineMath {
				require.NotNil(t, results[0].ExampleLine)
				assert.Equal(t, 1, *results[0].ExampleLine)
				return
			}
			assert.Nil(t, results[0].ExampleLine)
		})
	}
}

func TestLineMath_QuantityAlias(t *testing.T) {
	got := evaluate(t, LineMath,
		model.NewRecord("quantity", 3, "unitPrice", 1.5, "lineTotal", 4.5),
		model.NewRecord("quantity", 2, "unitPrice", 2.5, "lineTotal", 4),
	)

	assert.False(t, got.OK)
	assert.Equal(t, 2, *got.ExampleLine)
	assert.Equal(t, "Line 2: Quantity × Unit Price (2 × 2.5 = 5) should equal Line Total (4)", got.Explanation)
}

func TestDateISO(t *testing.T) {
	tests := []struct {
		name        string
		record      model.Record
		wantOK      bool
		explanation string
	}{
		{"valid", model.NewRecord("issue_date", "2025-01-31"), true, "All dates are in valid ISO format (YYYY-MM-DD)"},
		{"slashes", model.NewRecord("issue_date", "31/01/2025"), false, `Date "31/01/2025" should be in YYYY-MM-DD format (e.g., 2025-01-31)`},
		{"impossible day", model.NewRecord("issueDate", "2025-02-30"), false, `Date "2025-02-30" is not a valid date`},
		{"date alias", model.NewRecord("date", "2025-13-01"), false, `Date "2025-13-01" is not a valid date`},
		{"numeric ignored", model.NewRecord("issue_date", 20250131), true, "All dates are in valid ISO format (YYYY-MM-DD)"},
		{"empty ignored", model.NewRecord("issue_date", ""), true, "All dates are in valid ISO format (YYYY-MM-DD)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluate(t, DateISO, tt.record)
			assert.Equal(t, tt.wantOK, got.OK)
			assert.Equal(t, tt.explanation, got.Explanation)
		})
	}
}

func TestCurrencyAllowed(t *testing.T) {
	assert.True(t, evaluate(t, CurrencyAllowed, model.NewRecord("currency", "aed"), model.NewRecord("currency", "USD")).OK)

	got := evaluate(t, CurrencyAllowed,
		model.NewRecord("currency", "SAR"),
		model.NewRecord("currency", "eur"),
		model.NewRecord("currency", "GBP"),
	)
	assert.False(t, got.OK)
	assert.Equal(t, "eur", got.Value)
	assert.Equal(t, `Currency "eur" is not allowed. Supported currencies: AED, SAR, MYR, USD`, got.Explanation)
}

func TestTRNPresent(t *testing.T) {
	tests := []struct {
		name   string
		record model.Record
		wantOK bool
	}{
		{"both present", model.NewRecord("buyer_trn", "100", "seller_trn", "200"), true},
		{"tax id aliases", model.NewRecord("buyer_tax_id", "100", "sellerTrn", 200), true},
		{"seller missing", model.NewRecord("buyer_trn", "100"), false},
		{"blank buyer", model.NewRecord("buyer_trn", "   ", "seller_trn", "200"), false},
		{"neither", model.NewRecord("invoice_id", "INV-1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluate(t, TRNPresent, tt.record)
			assert.Equal(t, tt.wantOK, got.OK)
		})
	}
}

func TestCountryRules(t *testing.T) {
	registry := DefaultRegistry()
	assert.Empty(t, registry.For("FR"))

	ksa := registry.For(CountryKSA)[0]
	results := ksa.Evaluate([]model.Record{
		model.NewRecord("total_excl_vat", 100, "vat_amount", 15),
		model.NewRecord("total_excl_vat", 100, "vat_amount", 5),
		model.NewRecord("total_excl_vat", 0, "vat_amount", 5),
		model.NewRecord("total_excl_vat", 200, "vat_amount", 30.1),
	}, ksa.Policy)
	require.Len(t, results, 1)
	assert.Equal(t, "VAT rate should be 15%, calculated 5.00%", results[0].Value)
	assert.Equal(t, "KSA requires 15% VAT rate on all invoices", results[0].Explanation)
	assert.Nil(t, results[0].ExampleLine)

	my := registry.For(CountryMY)[0]
	results = my.Evaluate([]model.Record{
		model.NewRecord("buyer_trn", "123456789012", "seller_trn", "MY-12"),
		model.NewRecord("buyerTrn", 1234567890123),
	}, my.Policy)
	require.Len(t, results, 2)
	assert.Equal(t, "MY-12", results[0].Value)
	assert.Equal(t, "1234567890123", results[1].Value)
	assert.Equal(t, "Malaysia GST number should be 12 digits", results[1].Explanation)
}
