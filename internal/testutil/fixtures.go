package testutil

import "github.com/Veraticus/invoice-readiness/internal/model"

// Fixture names double as the ERP label of the seeded upload.
const (
	FixtureCleanUAE = "fixture-clean-uae"
	FixtureKSA      = "fixture-ksa"
	FixtureMessy    = "fixture-messy"
)

// CleanUAEUpload is a sample that maps every canonical field exactly and
// passes every rule.
func CleanUAEUpload() *model.Upload {
	return &model.Upload{
		Country: "UAE",
		ERP:     FixtureCleanUAE,
		Records: []model.Record{
			cleanRow("INV-1", 2, 50),
			cleanRow("INV-2", 4, 25),
		},
		RowsParsed: 2,
	}
}

// KSAUpload is a Saudi sample with the VAT rate at the expected 15%.
func KSAUpload() *model.Upload {
	return &model.Upload{
		Country: "KSA",
		ERP:     FixtureKSA,
		Records: []model.Record{
			model.NewRecord(
				"invoice_id", "INV-KSA-1",
				"issue_date", "2025-02-01",
				"currency", "SAR",
				"total_excl_vat", 100,
				"vat_amount", 15,
				"total_incl_vat", 115,
				"buyer_trn", "300000000000003",
				"seller_trn", "310000000000003",
			),
		},
		RowsParsed: 1,
	}
}

// MessyUpload has camelCase headers and several rule failures.
func MessyUpload() *model.Upload {
	return &model.Upload{
		Country: "UAE",
		ERP:     FixtureMessy,
		Records: []model.Record{
			model.NewRecord(
				"invoiceNo", "A-1",
				"issueDate", "31/01/2025",
				"currency", "EUR",
				"totalExclVat", 100,
				"vatAmount", 5,
				"totalInclVat", 110,
				"qty", 2,
				"unitPrice", 10,
				"lineTotal", 25,
			),
		},
		RowsParsed: 1,
	}
}

func cleanRow(id string, qty, price float64) model.Record {
	net := qty * price
	vat := net * 0.05
	return model.NewRecord(
		"invoice_id", id,
		"invoice_issue_date", "2025-01-31",
		"invoice_currency", "AED",
		"invoice_total_excl_vat", net,
		"invoice_vat_amount", vat,
		"invoice_total_incl_vat", net+vat,
		"seller_name", "Acme Trading LLC",
		"seller_trn", "100000000000003",
		"seller_city", "Dubai",
		"seller_country", "AE",
		"buyer_name", "Globex FZE",
		"buyer_trn", "100000000000011",
		"buyer_city", "Abu Dhabi",
		"buyer_country", "AE",
		"lines_sku", "SKU-1",
		"lines_description", "Widget",
		"lines_qty", qty,
		"lines_unit_price", price,
		"lines_line_total", net,
	)
}
