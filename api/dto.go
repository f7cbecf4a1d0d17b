/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Prices travel as decimal strings ("149.90"), never floats, so nothing is
  lost crossing the JSON boundary.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/stone-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateBatchRequest struct {
	Description   string `json:"description"`
	TotalQuantity int64  `json:"total_quantity"`
}

type AdjustBatchRequest struct {
	NewTotal int64 `json:"new_total"`
}

type CreateDelegationRequest struct {
	SellerID   string `json:"seller_id"`
	Quantity   int64  `json:"quantity"`
	FloorPrice string `json:"floor_price"`
}

type CreateOfferRequest struct {
	BatchID      string  `json:"batch_id"`
	DelegationID string  `json:"delegation_id,omitempty"` // empty = direct offer
	ClientRef    string  `json:"client_ref"`
	UnitPrice    string  `json:"unit_price"`
	Quantity     int64   `json:"quantity"`
	ExpiresAt    *string `json:"expires_at,omitempty"` // RFC 3339
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SnapshotDTO struct {
	BatchID       string `json:"batch_id"`
	Total         int64  `json:"total"`
	Sold          int64  `json:"sold"`
	Reserved      int64  `json:"reserved"`
	DirectHold    int64  `json:"direct_hold"`
	DelegatedHold int64  `json:"delegated_hold"`
	SoftReserved  int64  `json:"soft_reserved"`
	Available     int64  `json:"available"`
}

type BatchDTO struct {
	ID            string       `json:"id"`
	Description   string       `json:"description"`
	TotalQuantity int64        `json:"total_quantity"`
	CreatedAt     string       `json:"created_at"`
	Snapshot      *SnapshotDTO `json:"snapshot,omitempty"`
}

type DelegationDTO struct {
	ID                string `json:"id"`
	BatchID           string `json:"batch_id"`
	SellerID          string `json:"seller_id"`
	DelegatedQuantity int64  `json:"delegated_quantity"`
	AgreedFloorPrice  string `json:"agreed_floor_price"`
	Status            string `json:"status"`
	NetAvailable      int64  `json:"net_available"`
	RemainingBalance  int64  `json:"remaining_balance"`
	CreatedAt         string `json:"created_at"`
}

type OfferDTO struct {
	ID              string  `json:"id"`
	BatchID         string  `json:"batch_id"`
	DelegationID    string  `json:"delegation_id,omitempty"`
	ClientRef       string  `json:"client_ref"`
	UnitPrice       string  `json:"unit_price"`
	QuantityOffered int64   `json:"quantity_offered"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	ExpiresAt       *string `json:"expires_at,omitempty"`
}

type RevokeDelegationResponse struct {
	Outcome    string         `json:"outcome"` // "deleted" or "archived"
	Delegation *DelegationDTO `json:"delegation,omitempty"`
}

type RevenueDTO struct {
	BatchID   string `json:"batch_id"`
	UnitCost  string `json:"unit_cost"`
	SoldCount int    `json:"sold_offers"`
	Revenue   string `json:"revenue"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSnapshotDTO(s ledger.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		BatchID:       string(s.BatchID),
		Total:         s.Total,
		Sold:          s.Sold,
		Reserved:      s.Reserved,
		DirectHold:    s.DirectHold,
		DelegatedHold: s.DelegatedHold,
		SoftReserved:  s.SoftReserved,
		Available:     s.Available,
	}
}

func toBatchDTO(b ledger.Batch, snap *ledger.Snapshot) BatchDTO {
	dto := BatchDTO{
		ID:            string(b.ID),
		Description:   b.Description,
		TotalQuantity: b.TotalQuantity,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if snap != nil {
		s := toSnapshotDTO(*snap)
		dto.Snapshot = &s
	}
	return dto
}

func toDelegationDTO(d ledger.Delegation, netAvailable, remaining int64) DelegationDTO {
	return DelegationDTO{
		ID:                string(d.ID),
		BatchID:           string(d.BatchID),
		SellerID:          string(d.SellerID),
		DelegatedQuantity: d.DelegatedQuantity,
		AgreedFloorPrice:  d.AgreedFloorPrice.String(),
		Status:            string(d.Status),
		NetAvailable:      netAvailable,
		RemainingBalance:  remaining,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
	}
}

func toOfferDTO(o ledger.Offer) OfferDTO {
	dto := OfferDTO{
		ID:              string(o.ID),
		BatchID:         string(o.BatchID),
		DelegationID:    string(o.DelegationID),
		ClientRef:       o.ClientRef,
		UnitPrice:       o.UnitPrice.String(),
		QuantityOffered: o.QuantityOffered,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
	if o.ExpiresAt != nil {
		s := o.ExpiresAt.Format(time.RFC3339)
		dto.ExpiresAt = &s
	}
	return dto
}
