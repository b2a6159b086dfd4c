package rules

import (
	"log/slog"

	"github.com/Veraticus/invoice-readiness/internal/model"
)

// Engine evaluates the standard rules followed by the rules registered for
// the requested country. An Engine is immutable once built and safe for
// concurrent use.
type Engine struct {
	countries Registry
	overrides map[ID]Policy
	standard  []Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the default policy of a rule.
func WithPolicy(id ID, p Policy) Option {
	return func(e *Engine) {
		e.overrides[id] = p
	}
}

// WithCountryRules registers extra rules for a country code, appended after
// any rules already registered for it.
func WithCountryRules(country string, rules ...Rule) Option {
	return func(e *Engine) {
		e.countries[country] = append(e.countries[country], rules...)
	}
}

// NewEngine builds an engine with the standard rules and the default
// country registry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		standard:  Standard(),
		countries: DefaultRegistry(),
		overrides: make(map[ID]Policy),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates every rule over the records. Standard findings come first in
// declaration order, then the country findings. An unrecognized country adds
// no rules.
func (e *Engine) Run(records []model.Record, country string) []Result {
	var results []Result

	for _, rule := range e.standard {
		results = append(results, rule.Evaluate(records, e.policy(rule))...)
	}

	countryRules := e.countries.For(country)
	for _, rule := range countryRules {
		results = append(results, rule.Evaluate(records, e.policy(rule))...)
	}

	slog.Debug("Rules evaluated",
		"rows", len(records),
		"country", country,
		"country_rules", len(countryRules),
		"findings", len(results))

	return results
}

// Countries returns the country codes with registered rules.
func (e *Engine) Countries() []string {
	return e.countries.Countries()
}

func (e *Engine) policy(r Rule) Policy {
	if p, ok := e.overrides[r.ID]; ok {
		return p
	}
	return r.Policy
}

// RunAllRules evaluates records with the default engine.
func RunAllRules(records []model.Record, country string) []Result {
	return NewEngine().Run(records, country)
}
