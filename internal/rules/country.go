package rules

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/Veraticus/invoice-readiness/internal/model"
)

// Supported country codes.
const (
	CountryUAE = "UAE"
	CountryKSA = "KSA"
	CountryMY  = "MY"
)

const (
	uaeTRNLength = 15
	ksaVATRate   = 15.0
	// KSA rate tolerance in percentage points.
	ksaRateTolerance = 0.1
)

var gstNumber = regexp.MustCompile(`^\d{12}$`)

// Country rules read the snake_case and camelCase TRN columns only.
var (
	buyerTRNAliases  = []string{"buyer_trn", "buyerTrn"}
	sellerTRNAliases = []string{"seller_trn", "sellerTrn"}
)

// Registry maps a country code to the extra rules it requires.
type Registry map[string][]Rule

// DefaultRegistry returns the built-in country rules.
func DefaultRegistry() Registry {
	return Registry{
		CountryUAE: {{
			ID:          UAETRNLength,
			Check:       checkUAETRNLength,
			Explanation: "UAE TRN must be exactly 15 digits long",
			Policy:      AllFailures,
		}},
		CountryKSA: {{
			ID:          KSAVATRate,
			Check:       checkKSAVATRate,
			Explanation: "KSA requires 15% VAT rate on all invoices",
			Policy:      AllFailures,
		}},
		CountryMY: {{
			ID:          MYGSTFormat,
			Check:       checkMYGSTFormat,
			Explanation: "Malaysia GST number should be 12 digits",
			Policy:      AllFailures,
		}},
	}
}

// For returns the rules registered for a country. Unknown codes have none.
func (r Registry) For(country string) []Rule {
	return r[country]
}

// Countries returns the registered country codes, sorted.
func (r Registry) Countries() []string {
	out := make([]string, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func checkUAETRNLength(row model.Record, _ int) []Violation {
	var out []Violation
	for _, party := range []struct {
		label   string
		aliases []string
	}{
		{"Buyer", buyerTRNAliases},
		{"Seller", sellerTRNAliases},
	} {
		v := row.Lookup(party.aliases...)
		if v == nil {
			continue
		}
		if n := len(model.Text(v)); n != uaeTRNLength {
			out = append(out, Violation{
				Value: fmt.Sprintf("%s TRN should be 15 digits, got %d", party.label, n),
			})
		}
	}
	return out
}

func checkKSAVATRate(row model.Record, _ int) []Violation {
	totalExcl := model.Number(row.Lookup("total_excl_vat"))
	vat := model.Number(row.Lookup("vat_amount"))

	if totalExcl <= 0 || vat <= 0 {
		return nil
	}

	rate := vat / totalExcl * 100
	if math.Abs(rate-ksaVATRate) <= ksaRateTolerance {
		return nil
	}
	return []Violation{{
		Expected: ptr(ksaVATRate),
		Got:      ptr(rate),
		Value:    fmt.Sprintf("VAT rate should be 15%%, calculated %.2f%%", rate),
	}}
}

func checkMYGSTFormat(row model.Record, _ int) []Violation {
	var out []Violation
	for _, aliases := range [][]string{buyerTRNAliases, sellerTRNAliases} {
		v := row.Lookup(aliases...)
		if v == nil {
			continue
		}
		if trn := model.Text(v); !gstNumber.MatchString(trn) {
			out = append(out, Violation{Value: trn})
		}
	}
	return out
}
