// Package rules validates invoice records against the GETS v0.1 business
// rules and the country-specific checks registered per country code.
package rules

import (
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/model"
)

// ID identifies a rule in findings.
type ID string

// Standard rule identifiers, in evaluation order.
const (
	TotalsBalance   ID = "TOTALS_BALANCE"
	LineMath        ID = "LINE_MATH"
	DateISO         ID = "DATE_ISO"
	CurrencyAllowed ID = "CURRENCY_ALLOWED"
	TRNPresent      ID = "TRN_PRESENT"
)

// Country rule identifiers.
const (
	UAETRNLength ID = "UAE_TRN_LENGTH"
	KSAVATRate   ID = "KSA_VAT_RATE"
	MYGSTFormat  ID = "MY_GST_FORMAT"
)

// Policy controls how many violations a rule reports.
type Policy int

const (
	// FirstFailure stops at the first violating row and reports only it.
	FirstFailure Policy = iota
	// AllFailures reports one finding per violation across every row.
	AllFailures
)

func (p Policy) String() string {
	switch p {
	case FirstFailure:
		return "first_failure"
	case AllFailures:
		return "all_failures"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy resolves a policy name as written in configuration.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first_failure", "first":
		return FirstFailure, nil
	case "all_failures", "all":
		return AllFailures, nil
	default:
		return 0, fmt.Errorf("unknown rule policy %q", s)
	}
}

// Result is one finding. A rule that finds nothing wrong yields a single ok
// result; a failing rule yields one result per reported violation.
type Result struct {
	ExampleLine *int     `json:"exampleLine,omitempty"`
	Expected    *float64 `json:"expected,omitempty"`
	Got         *float64 `json:"got,omitempty"`
	Rule        ID       `json:"rule"`
	Value       string   `json:"value,omitempty"`
	Explanation string   `json:"explanation"`
	OK          bool     `json:"ok"`
}

// Violation is what a check reports for one offending row. An empty
// Explanation falls back to the rule's failure text.
type Violation struct {
	Expected    *float64
	Got         *float64
	Value       string
	Explanation string
}

// CheckFunc inspects a single row. line is the 1-based row index.
type CheckFunc func(row model.Record, line int) []Violation

// Rule couples a row check with its reporting texts and default policy.
type Rule struct {
	Check CheckFunc
	ID    ID
	// Explanation is the failure text used when a violation carries none.
	Explanation string
	// Pass is reported when no row violates the rule. Rules without a pass
	// text only ever report failures.
	Pass   string
	Policy Policy
	// LocatesLine sets ExampleLine on failures to the offending row.
	LocatesLine bool
}

// Evaluate runs the rule over every record under the given policy.
func (r Rule) Evaluate(records []model.Record, policy Policy) []Result {
	var results []Result

	for i, row := range records {
		line := i + 1
		for _, v := range r.Check(row, line) {
			results = append(results, r.failure(v, line))
			if policy == FirstFailure {
				return results
			}
		}
	}

	if len(results) == 0 && r.Pass != "" {
		return []Result{{Rule: r.ID, OK: true, Explanation: r.Pass}}
	}
	return results
}

func (r Rule) failure(v Violation, line int) Result {
	explanation := v.Explanation
	if explanation == "" {
		explanation = r.Explanation
	}
	res := Result{
		Rule:        r.ID,
		Expected:    v.Expected,
		Got:         v.Got,
		Value:       v.Value,
		Explanation: explanation,
	}
	if r.LocatesLine {
		res.ExampleLine = &line
	}
	return res
}

// Explanations returns the explanation of every failing finding, in order.
func Explanations(results []Result) []string {
	out := []string{}
	for _, r := range results {
		if !r.OK && r.Explanation != "" {
			out = append(out, r.Explanation)
		}
	}
	return out
}

// PassedStandard counts the standard rules that passed outright. Country
// findings never count.
func PassedStandard(results []Result) int {
	passed := make(map[ID]bool)
	failed := make(map[ID]bool)
	for _, r := range results {
		if r.OK {
			passed[r.Rule] = true
		} else {
			failed[r.Rule] = true
		}
	}

	n := 0
	for _, id := range StandardIDs() {
		if passed[id] && !failed[id] {
			n++
		}
	}
	return n
}

func ptr(f float64) *float64 {
	return &f
}
