// Package engine wires the inventory ledger services over a storage backend.
package engine

import (
	"stockledger/internal/core/events"
	corenumerator "stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/period"
	"stockledger/internal/domain/posting"
	"stockledger/internal/domain/valuation"
)

// Backend is the storage a deployment provides.
type Backend struct {
	TxManager  tx.Manager
	Layers     costlayer.Repository
	Ledger     ledger.Repository
	Accounting posting.Repository
	Periods    period.Repository
	Reports    valuation.Repository
	Documents  documents.Repository
	Catalog    ledger.ItemCatalog
	Numbers    corenumerator.Generator
	Locker     tx.Locker
	Publisher  events.Publisher
	Codec      period.PayloadCodec
}

// Engine exposes the wired services.
type Engine struct {
	Layers    *costlayer.Store
	Resolver  *posting.Resolver
	Poster    *posting.Poster
	Recorder  *ledger.Recorder
	Valuation *valuation.Service
	Periods   *period.Service
	Documents *documents.Service
}

// New wires the services. The period service is the recorder's period gate.
func New(b Backend, cfg ledger.Config) *Engine {
	layers := costlayer.NewStore(b.Layers, b.TxManager)
	resolver := posting.NewResolver(b.Accounting)
	poster := posting.NewPoster(b.Accounting, resolver, b.Numbers)
	val := valuation.NewService(b.Reports)
	periods := period.NewService(b.TxManager, b.Periods, b.Documents, val, b.Locker, b.Codec, b.Publisher)
	recorder := ledger.NewRecorder(b.TxManager, b.Ledger, layers, poster, b.Catalog, periods, cfg)
	docs := documents.NewService(b.TxManager, b.Documents, recorder, layers)

	return &Engine{
		Layers:    layers,
		Resolver:  resolver,
		Poster:    poster,
		Recorder:  recorder,
		Valuation: val,
		Periods:   periods,
		Documents: docs,
	}
}
