package memory

import (
	"stockledger/internal/engine"
	"stockledger/pkg/compress"
)

// Backend returns an engine backend over s.
func (s *Store) Backend(locker *Locker, codec *compress.Codec) engine.Backend {
	return engine.Backend{
		TxManager:  s,
		Layers:     s.Layers(),
		Ledger:     s.Ledger(),
		Accounting: s.Accounting(),
		Periods:    s.Periods(),
		Reports:    s.Reports(),
		Documents:  s.Documents(),
		Catalog:    s.Catalog(),
		Numbers:    s.Numbers(),
		Locker:     locker,
		Publisher:  s.Outbox(),
		Codec:      codec,
	}
}
