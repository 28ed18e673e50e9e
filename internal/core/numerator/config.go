// Package numerator provides the contract for sequential document numbering.
// Journal entries take their human-readable numbers from a Generator.
package numerator

import "stockledger/internal/core/id"

// JournalPrefix numbers inventory journals (JE-2026-00001).
const JournalPrefix = "JE"

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict hits the sequence row for every number.
	// Run inside the posting transaction it is gapless.
	StrategyStrict Strategy = iota

	// StrategyCached reserves RangeSize values per sequence hit.
	// Numbers lost on restart leave gaps, so journals never use it.
	StrategyCached
)

// Options tunes how numbers are drawn.
type Options struct {
	Strategy Strategy
	// RangeSize defaults to 50.
	RangeSize int64
}

// DefaultOptions returns the strict strategy.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Reset is the calendar boundary at which a sequence restarts from 1.
type Reset string

const (
	ResetNever Reset = "never"
	ResetYear  Reset = "year"
	// ResetMonth follows inventory periods; formatted numbers carry the month.
	ResetMonth Reset = "month"
)

// Config describes one family of numbers.
type Config struct {
	Prefix string

	// Scope separates independent sequences sharing a prefix.
	Scope string

	IncludeYear bool

	// PadWidth is the minimum width of the counter (default 5).
	PadWidth int

	Reset Reset
}

// DefaultConfig returns yearly-reset numbering for prefix within scope.
func DefaultConfig(prefix, scope string) Config {
	return Config{
		Prefix:      prefix,
		Scope:       scope,
		IncludeYear: true,
		PadWidth:    5,
		Reset:       ResetYear,
	}
}

// JournalConfig numbers an org's journal entries. Each org counts from 1
// every year, so JE-2026-00001 exists once per org.
func JournalConfig(orgID id.ID) Config {
	return DefaultConfig(JournalPrefix, orgID.String())
}
