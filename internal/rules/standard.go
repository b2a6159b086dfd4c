package rules

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/invoice-readiness/internal/model"
)

// Tolerance is the absolute difference allowed between computed and
// declared amounts.
const Tolerance = 0.01

// AllowedCurrencies lists the accepted invoice currencies.
var AllowedCurrencies = []string{"AED", "SAR", "MYR", "USD"}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Column aliases accepted for each operand.
var (
	totalExclAliases = []string{"total_excl_vat", "totalExclVat"}
	vatAmountAliases = []string{"vat_amount", "vatAmount"}
	totalInclAliases = []string{"total_incl_vat", "totalInclVat"}
	qtyAliases       = []string{"qty", "quantity"}
	unitPriceAliases = []string{"unit_price", "unitPrice"}
	lineTotalAliases = []string{"line_total", "lineTotal"}
	issueDateAliases = []string{"issue_date", "issueDate", "date"}
	buyerTaxAliases  = []string{"buyer_trn", "buyerTrn", "buyer_tax_id"}
	sellerTaxAliases = []string{"seller_trn", "sellerTrn", "seller_tax_id"}
)

// Standard returns the country-agnostic rules in evaluation order.
func Standard() []Rule {
	return []Rule{
		{
			ID:          TotalsBalance,
			Check:       checkTotalsBalance,
			Explanation: "Invoice totals do not balance. Ensure total_excl_vat + vat_amount = total_incl_vat (±0.01)",
			Pass:        "All invoice totals are correctly balanced",
			Policy:      FirstFailure,
		},
		{
			ID:          LineMath,
			Check:       checkLineMath,
			Pass:        "All line item calculations are correct",
			Policy:      FirstFailure,
			LocatesLine: true,
		},
		{
			ID:     DateISO,
			Check:  checkDateISO,
			Pass:   "All dates are in valid ISO format (YYYY-MM-DD)",
			Policy: FirstFailure,
		},
		{
			ID:     CurrencyAllowed,
			Check:  checkCurrencyAllowed,
			Pass:   "All currencies are supported (AED, SAR, MYR, USD)",
			Policy: FirstFailure,
		},
		{
			ID:          TRNPresent,
			Check:       checkTRNPresent,
			Explanation: "Missing Tax Registration Numbers (TRN) for buyer or seller. Both are required.",
			Pass:        "TRN numbers present for all buyers and sellers",
			Policy:      FirstFailure,
		},
	}
}

// StandardIDs returns the identifiers of the standard rules.
func StandardIDs() []ID {
	return []ID{TotalsBalance, LineMath, DateISO, CurrencyAllowed, TRNPresent}
}

// Rows missing any operand are skipped.
func checkTotalsBalance(row model.Record, _ int) []Violation {
	totalExcl := model.Number(row.Lookup(totalExclAliases...))
	vat := model.Number(row.Lookup(vatAmountAliases...))
	totalIncl := model.Number(row.Lookup(totalInclAliases...))

	if totalExcl == 0 || vat == 0 || totalIncl == 0 {
		return nil
	}

	calculated := totalExcl + vat
	if math.Abs(calculated-totalIncl) <= Tolerance {
		return nil
	}
	return []Violation{{Expected: ptr(calculated), Got: ptr(totalIncl)}}
}

func checkLineMath(row model.Record, line int) []Violation {
	qty := model.Number(row.Lookup(qtyAliases...))
	unitPrice := model.Number(row.Lookup(unitPriceAliases...))
	lineTotal := model.Number(row.Lookup(lineTotalAliases...))

	if qty == 0 || unitPrice == 0 || lineTotal == 0 {
		return nil
	}

	calculated := qty * unitPrice
	if math.Abs(calculated-lineTotal) <= Tolerance {
		return nil
	}
	return []Violation{{
		Expected: ptr(calculated),
		Got:      ptr(lineTotal),
		Explanation: fmt.Sprintf("Line %d: Quantity × Unit Price (%s × %s = %s) should equal Line Total (%s)",
			line,
			model.FormatNumber(qty),
			model.FormatNumber(unitPrice),
			model.FormatNumber(calculated),
			model.FormatNumber(lineTotal)),
	}}
}

// Only string dates are checked; numeric cells are not dates.
func checkDateISO(row model.Record, _ int) []Violation {
	date, ok := row.Lookup(issueDateAliases...).(string)
	if !ok || date == "" {
		return nil
	}

	if !isoDate.MatchString(date) {
		return []Violation{{
			Value:       date,
			Explanation: fmt.Sprintf(`Date "%s" should be in YYYY-MM-DD format (e.g., 2025-01-31)`, date),
		}}
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return []Violation{{
			Value:       date,
			Explanation: fmt.Sprintf(`Date "%s" is not a valid date`, date),
		}}
	}
	return nil
}

func checkCurrencyAllowed(row model.Record, _ int) []Violation {
	currency, ok := row.Lookup("currency").(string)
	if !ok || currency == "" {
		return nil
	}

	upper := strings.ToUpper(currency)
	for _, allowed := range AllowedCurrencies {
		if upper == allowed {
			return nil
		}
	}
	return []Violation{{
		Value: currency,
		Explanation: fmt.Sprintf(`Currency "%s" is not allowed. Supported currencies: %s`,
			currency, strings.Join(AllowedCurrencies, ", ")),
	}}
}

func checkTRNPresent(row model.Record, _ int) []Violation {
	buyer := strings.TrimSpace(model.Text(row.Lookup(buyerTaxAliases...)))
	seller := strings.TrimSpace(model.Text(row.Lookup(sellerTaxAliases...)))

	if buyer != "" && seller != "" {
		return nil
	}
	return []Violation{{}}
}
