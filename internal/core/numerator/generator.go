package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator generates sequential document numbers.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g. JE-2024-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}

// SequenceKey identifies the counter row a number is drawn from.
func SequenceKey(cfg Config, period time.Time) string {
	base := cfg.Prefix
	if cfg.Scope != "" {
		base = cfg.Prefix + "_" + cfg.Scope
	}
	switch cfg.Reset {
	case ResetMonth:
		return fmt.Sprintf("%s_%s", base, period.Format("2006_01"))
	case ResetYear:
		return fmt.Sprintf("%s_%s", base, period.Format("2006"))
	default:
		return base
	}
}

// Format renders num according to cfg.
func Format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		stamp := period.Format("2006")
		if cfg.Reset == ResetMonth {
			stamp = period.Format("2006-01")
		}
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, stamp, padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
