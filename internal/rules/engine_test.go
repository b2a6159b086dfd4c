package rules

import (
	"testing"

	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findings(results []Result, id ID) []Result {
	var out []Result
	for _, r := range results {
		if r.Rule == id {
			out = append(out, r)
		}
	}
	return out
}

func TestRunAllRules_KSABalancedInvoice(t *testing.T) {
	records := []model.Record{
		model.NewRecord("total_excl_vat", 100, "vat_amount", 15, "total_incl_vat", 115),
	}

	results := RunAllRules(records, CountryKSA)

	totals := findings(results, TotalsBalance)
	require.Len(t, totals, 1)
	assert.True(t, totals[0].OK)
	assert.Equal(t, "All invoice totals are correctly balanced", totals[0].Explanation)

	assert.Empty(t, findings(results, KSAVATRate), "15% VAT must not produce a KSA finding")
}

func TestRunAllRules_LineMathFailure(t *testing.T) {
	records := []model.Record{
		model.NewRecord("qty", 2, "unit_price", 10, "line_total", 25),
	}

	lineMath := findings(RunAllRules(records, "FR"), LineMath)
	require.Len(t, lineMath, 1)

	got := lineMath[0]
	assert.False(t, got.OK)
	require.NotNil(t, got.ExampleLine)
	require.NotNil(t, got.Expected)
	require.NotNil(t, got.Got)
	assert.Equal(t, 1, *got.ExampleLine)
	assert.Equal(t, 20.0, *got.Expected)
	assert.Equal(t, 25.0, *got.Got)
	assert.Equal(t, "Line 1: Quantity × Unit Price (2 × 10 = 20) should equal Line Total (25)", got.Explanation)
}

func TestRunAllRules_UnknownCountry(t *testing.T) {
	records := []model.Record{
		model.NewRecord("buyer_trn", "123", "seller_trn", "456"),
	}

	for _, country := range []string{"FR", "", "uae", "Saudi Arabia"} {
		results := RunAllRules(records, country)
		require.Len(t, results, 5, "country %q", country)
		for i, id := range StandardIDs() {
			assert.Equal(t, id, results[i].Rule)
		}
	}
}

func TestRunAllRules_Order(t *testing.T) {
	records := []model.Record{
		model.NewRecord("buyer_trn", "1", "seller_trn", "2", "currency", "EUR"),
	}

	results := RunAllRules(records, CountryUAE)
	require.Len(t, results, 7)

	var order []ID
	for _, r := range results {
		order = append(order, r.Rule)
	}
	assert.Equal(t, []ID{
		TotalsBalance, LineMath, DateISO, CurrencyAllowed, TRNPresent,
		UAETRNLength, UAETRNLength,
	}, order)
	assert.False(t, results[3].OK)
}

func TestRunAllRules_EmptyRecordsPass(t *testing.T) {
	results := RunAllRules(nil, CountryUAE)

	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.OK, r.Rule)
		assert.NotEmpty(t, r.Explanation)
	}
	assert.Equal(t, 5, PassedStandard(results))
	assert.Empty(t, Explanations(results))
}

func TestEngine_FirstFailureShortCircuits(t *testing.T) {
	records := []model.Record{
		model.NewRecord("total_excl_vat", 100, "vat_amount", 15, "total_incl_vat", 120),
		model.NewRecord("total_excl_vat", 50, "vat_amount", 5, "total_incl_vat", 60),
	}

	totals := findings(NewEngine().Run(records, ""), TotalsBalance)
	require.Len(t, totals, 1)
	assert.Nil(t, totals[0].ExampleLine, "only LINE_MATH locates its row")
	assert.Equal(t, 115.0, *totals[0].Expected)
	assert.Equal(t, 120.0, *totals[0].Got)

	totals = findings(NewEngine(WithPolicy(TotalsBalance, AllFailures)).Run(records, ""), TotalsBalance)
	require.Len(t, totals, 2)
	assert.Equal(t, 55.0, *totals[1].Expected)
}

func TestEngine_CountryRulesAccumulate(t *testing.T) {
	records := []model.Record{
		model.NewRecord("buyer_trn", "12345", "seller_trn", "100000000000003"),
		model.NewRecord("buyer_trn", "1234567890123456", "seller_trn", "12"),
	}

	uae := findings(NewEngine().Run(records, CountryUAE), UAETRNLength)
	require.Len(t, uae, 3)
	assert.Equal(t, "Buyer TRN should be 15 digits, got 5", uae[0].Value)
	assert.Equal(t, "Buyer TRN should be 15 digits, got 16", uae[1].Value)
	assert.Equal(t, "Seller TRN should be 15 digits, got 2", uae[2].Value)
	assert.Nil(t, uae[2].ExampleLine)

	limited := findings(NewEngine(WithPolicy(UAETRNLength, FirstFailure)).Run(records, CountryUAE), UAETRNLength)
	assert.Len(t, limited, 1)
}

func TestEngine_WithCountryRules(t *testing.T) {
	custom := Rule{
		ID:          "FR_SIREN",
		Explanation: "SIREN required",
		Policy:      AllFailures,
		LocatesLine: true,
		Check: func(row model.Record, _ int) []Violation {
			if row.Lookup("siren") == nil {
				return []Violation{{}}
			}
			return nil
		},
	}

	e := NewEngine(WithCountryRules("FR", custom))
	assert.Equal(t, []string{"FR", CountryKSA, CountryMY, CountryUAE}, e.Countries())

	results := e.Run([]model.Record{model.NewRecord("siren", ""), model.NewRecord("siren", "123")}, "FR")
	fr := findings(results, "FR_SIREN")
	require.Len(t, fr, 1)
	assert.Equal(t, "SIREN required", fr[0].Explanation)
	assert.Equal(t, 1, *fr[0].ExampleLine)
}

func TestPassedStandard(t *testing.T) {
	results := []Result{
		{Rule: TotalsBalance, OK: true},
		{Rule: LineMath, OK: false},
		{Rule: DateISO, OK: true},
		{Rule: CurrencyAllowed, OK: true},
		{Rule: CurrencyAllowed, OK: false},
		{Rule: TRNPresent, OK: true},
		{Rule: UAETRNLength, OK: true},
	}
	assert.Equal(t, 3, PassedStandard(results))
}

func TestExplanations(t *testing.T) {
	results := []Result{
		{Rule: TotalsBalance, OK: true, Explanation: "fine"},
		{Rule: LineMath, Explanation: "line broken"},
		{Rule: KSAVATRate, Explanation: "rate off"},
		{Rule: DateISO},
	}
	assert.Equal(t, []string{"line broken", "rate off"}, Explanations(results))
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "first_failure", want: FirstFailure},
		{in: "ALL_FAILURES", want: AllFailures},
		{in: " all ", want: AllFailures},
		{in: "first", want: FirstFailure},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(ParsePolicy(got.String())))
		})
	}
}

func must(p Policy, err error) Policy {
	if err != nil {
		panic(err)
	}
	return p
}
