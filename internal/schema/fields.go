// Package schema holds the GETS v0.1 canonical e-invoicing field table.
package schema

import (
	"strings"
	"unicode"
)

// Field is a canonical dotted field path such as "invoice.total_incl_vat".
type Field string

// WeightClass groups canonical fields by how much they count toward coverage.
type WeightClass int

// Weight classes, lowest weight first.
const (
	ClassLine WeightClass = iota
	ClassParty
	ClassHeader
)

// Weight returns the coverage weight of the class.
func (c WeightClass) Weight() float64 {
	switch c {
	case ClassHeader:
		return 2
	case ClassParty:
		return 1.5
	default:
		return 1
	}
}

func (c WeightClass) String() string {
	switch c {
	case ClassHeader:
		return "header"
	case ClassParty:
		return "party"
	default:
		return "line"
	}
}

// Canonical fields.
const (
	InvoiceID           Field = "invoice.id"
	InvoiceIssueDate    Field = "invoice.issue_date"
	InvoiceCurrency     Field = "invoice.currency"
	InvoiceTotalExclVAT Field = "invoice.total_excl_vat"
	InvoiceVATAmount    Field = "invoice.vat_amount"
	InvoiceTotalInclVAT Field = "invoice.total_incl_vat"
	SellerName          Field = "seller.name"
	SellerTRN           Field = "seller.trn"
	SellerCountry       Field = "seller.country"
	SellerCity          Field = "seller.city"
	BuyerName           Field = "buyer.name"
	BuyerTRN            Field = "buyer.trn"
	BuyerCountry        Field = "buyer.country"
	BuyerCity           Field = "buyer.city"
	LineSKU             Field = "lines[].sku"
	LineDescription     Field = "lines[].description"
	LineQty             Field = "lines[].qty"
	LineUnitPrice       Field = "lines[].unit_price"
	LineTotal           Field = "lines[].line_total"
)

// MaxWeight is the fixed coverage denominator: six header fields at 2, six
// party fields at 1.5 and six line fields at 1. The city fields are weighted
// as line fields but are not part of the denominator, so a fully matched
// schema can exceed MaxWeight; coverage scoring clamps to its cap.
const MaxWeight = 6*2 + 6*1.5 + 6*1

// definition is one row of the canonical table.
type definition struct {
	field Field
	class WeightClass
}

// table is ordered: coverage iterates it for matched, close and missing.
var table = []definition{
	{InvoiceID, ClassHeader},
	{InvoiceIssueDate, ClassHeader},
	{InvoiceCurrency, ClassHeader},
	{InvoiceTotalExclVAT, ClassHeader},
	{InvoiceVATAmount, ClassHeader},
	{InvoiceTotalInclVAT, ClassHeader},
	{SellerName, ClassParty},
	{SellerTRN, ClassParty},
	{SellerCountry, ClassParty},
	{SellerCity, ClassLine},
	{BuyerName, ClassParty},
	{BuyerTRN, ClassParty},
	{BuyerCountry, ClassParty},
	{BuyerCity, ClassLine},
	{LineSKU, ClassLine},
	{LineDescription, ClassLine},
	{LineQty, ClassLine},
	{LineUnitPrice, ClassLine},
	{LineTotal, ClassLine},
}

var classes = func() map[Field]WeightClass {
	m := make(map[Field]WeightClass, len(table))
	for _, d := range table {
		m[d.field] = d.class
	}
	return m
}()

// Fields returns the canonical fields in declaration order.
func Fields() []Field {
	out := make([]Field, len(table))
	for i, d := range table {
		out[i] = d.field
	}
	return out
}

// ClassOf returns the weight class of a canonical field and whether it is known.
func ClassOf(f Field) (WeightClass, bool) {
	c, ok := classes[f]
	return c, ok
}

// Weight returns the coverage weight of a canonical field, 0 for unknown fields.
func Weight(f Field) float64 {
	c, ok := classes[f]
	if !ok {
		return 0
	}
	return c.Weight()
}

// IsCanonical reports whether f is part of the schema.
func IsCanonical(f Field) bool {
	_, ok := classes[f]
	return ok
}

// Normalize folds a field name for comparison: lower-case, with underscores,
// whitespace and the canonical path punctuation ('.', '[', ']') removed, so
// "Invoice_ID" and "invoice.id" both become "invoiceid".
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if r == '_' || r == '.' || r == '[' || r == ']' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
