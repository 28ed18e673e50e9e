package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// EventPayload is the closed set of per-event payload variants.
// Each variant has a fixed field set and validates itself.
type EventPayload interface {
	// Kind is the discriminator stored in the envelope.
	Kind() PayloadKind
	// Accepts reports whether the variant may accompany an event of type e.
	Accepts(e EventType) bool
	Validate() error
}

// PayloadKind discriminates payload variants.
type PayloadKind string

const (
	PayloadPurchase   PayloadKind = "purchase"
	PayloadSale       PayloadKind = "sale"
	PayloadWaste      PayloadKind = "waste"
	PayloadTransfer   PayloadKind = "transfer"
	PayloadAdjustment PayloadKind = "adjustment"
)

// PurchasePayload accompanies PURCHASE events.
type PurchasePayload struct {
	SupplierID    string `json:"supplierId,omitempty"`
	ReceiptLineID string `json:"receiptLineId,omitempty"`
	InvoiceRef    string `json:"invoiceRef,omitempty"`
}

func (PurchasePayload) Kind() PayloadKind        { return PayloadPurchase }
func (PurchasePayload) Accepts(e EventType) bool { return e == EventPurchase }
func (PurchasePayload) Validate() error          { return nil }

// SalePayload accompanies SALE events (one recipe ingredient of an order).
type SalePayload struct {
	OrderLineID string `json:"orderLineId,omitempty"`
	MenuItemID  string `json:"menuItemId,omitempty"`
	RecipeID    string `json:"recipeId,omitempty"`
}

func (SalePayload) Kind() PayloadKind        { return PayloadSale }
func (SalePayload) Accepts(e EventType) bool { return e == EventSale }
func (SalePayload) Validate() error          { return nil }

// WastePayload accompanies WASTE events.
type WastePayload struct {
	Reason string `json:"reason"`
	Note   string `json:"note,omitempty"`
}

func (WastePayload) Kind() PayloadKind        { return PayloadWaste }
func (WastePayload) Accepts(e EventType) bool { return e == EventWaste }

func (p WastePayload) Validate() error {
	if strings.TrimSpace(p.Reason) == "" {
		return apperror.NewValidation("waste reason is required")
	}
	return nil
}

// TransferPayload accompanies both legs of an inter-branch transfer.
type TransferPayload struct {
	TransferID          string `json:"transferId"`
	CounterpartBranchID id.ID  `json:"counterpartBranchId"`
}

func (TransferPayload) Kind() PayloadKind { return PayloadTransfer }

func (TransferPayload) Accepts(e EventType) bool {
	return e == EventTransferIn || e == EventTransferOut
}

func (p TransferPayload) Validate() error {
	if p.TransferID == "" {
		return apperror.NewValidation("transfer id is required")
	}
	if id.IsNil(p.CounterpartBranchID) {
		return apperror.NewValidation("counterpart branch is required")
	}
	return nil
}

// AdjustmentPayload accompanies stocktake variances and manual corrections.
type AdjustmentPayload struct {
	StocktakeID string         `json:"stocktakeId,omitempty"`
	ExpectedQty types.Quantity `json:"expectedQty"`
	CountedQty  types.Quantity `json:"countedQty"`
	Reason      string         `json:"reason,omitempty"`
}

func (AdjustmentPayload) Kind() PayloadKind        { return PayloadAdjustment }
func (AdjustmentPayload) Accepts(e EventType) bool { return e == EventAdjustment }

func (p AdjustmentPayload) Validate() error {
	if p.CountedQty.IsNegative() {
		return apperror.NewValidation("counted quantity cannot be negative")
	}
	return nil
}

type payloadEnvelope struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload wraps p into its tagged JSON envelope. A nil payload encodes to nil.
func EncodePayload(p EventPayload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Data: data})
}

// DecodePayload unwraps a tagged envelope into its concrete variant.
func DecodePayload(raw json.RawMessage) (EventPayload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	switch env.Kind {
	case PayloadPurchase:
		return decodeAs[PurchasePayload](env)
	case PayloadSale:
		return decodeAs[SalePayload](env)
	case PayloadWaste:
		return decodeAs[WastePayload](env)
	case PayloadTransfer:
		return decodeAs[TransferPayload](env)
	case PayloadAdjustment:
		return decodeAs[AdjustmentPayload](env)
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unknown payload kind %q", env.Kind))
	}
}

func decodeAs[T EventPayload](env payloadEnvelope) (EventPayload, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return v, nil
}
