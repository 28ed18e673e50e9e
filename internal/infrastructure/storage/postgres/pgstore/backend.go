// Package pgstore assembles the PostgreSQL repositories into an engine backend.
package pgstore

import (
	"context"

	"stockledger/internal/core/events"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/period"
	"stockledger/internal/engine"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/accounting_repo"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/period_repo"
	"stockledger/internal/infrastructure/storage/postgres/register_repo"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
	"stockledger/pkg/numerator"
)

// Options overrides the defaults of Backend.
type Options struct {
	// Locker guards period closes; nil selects the advisory lock.
	Locker tx.Locker
	// Publisher receives domain events; nil selects the outbox.
	Publisher events.Publisher
	Codec     period.PayloadCodec
}

// Backend wires every repository over txManager.
func Backend(txManager *postgres.TxManager, opts Options) engine.Backend {
	locker := opts.Locker
	if locker == nil {
		locker = postgres.NewAdvisoryLocker(txManager)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = postgres.NewOutboxPublisher(txManager)
	}

	numbers := numerator.NewWithQuerierFunc(func(ctx context.Context) numerator.Querier {
		return txManager.GetQuerier(ctx)
	})

	return engine.Backend{
		TxManager:  txManager,
		Layers:     register_repo.NewLayerRepo(txManager),
		Ledger:     register_repo.NewLedgerRepo(txManager),
		Accounting: accounting_repo.NewRepo(txManager),
		Periods:    period_repo.NewRepo(txManager),
		Reports:    report_repo.NewReportRepo(txManager),
		Documents:  document_repo.NewRepo(txManager),
		Catalog:    catalog_repo.NewItemRepo(txManager),
		Numbers:    numbers,
		Locker:     locker,
		Publisher:  publisher,
		Codec:      opts.Codec,
	}
}
