/*
handlers.go - HTTP API handlers for the inventory reconciliation engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Batches:
    GET    /api/batches                     List batches with snapshots
    POST   /api/batches                     Register a batch
    GET    /api/batches/{id}                Batch with snapshot
    GET    /api/batches/{id}/snapshot       Snapshot only
    POST   /api/batches/{id}/adjust         Administrative total correction
    GET    /api/batches/{id}/offers         Offers (optional ?status= filter)
    GET    /api/batches/{id}/revenue        Sold-offer margin over ?unit_cost=
    POST   /api/batches/{id}/delegations    Grant a quota to a reseller

  Delegations:
    GET    /api/delegations/{id}            Grant with both balance views
    DELETE /api/delegations/{id}            Revoke

  Offers:
    POST   /api/offers                      Create (direct or delegated)
    GET    /api/offers/{id}
    POST   /api/offers/{id}/request-reservation
    POST   /api/offers/{id}/approve         Hard-locks stock
    POST   /api/offers/{id}/reject          Reopens the offer to the market
    POST   /api/offers/{id}/finalize        Marks sold (irreversible)
    POST   /api/offers/{id}/expire          Cancels / expires (irreversible)

  Reconciliation:
    GET    /api/reconcile                   All batches, reconciled

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Guard conflicts (insufficient stock, illegal transition,
         active holds, below committed)
  - 500: Internal errors, invariant violations

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/stone-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
}

func NewHandler(service *ledger.Service) *Handler {
	return &Handler{Service: service}
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// ListBatches returns every batch with its reconciled snapshot.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile batches", err)
		return
	}

	dtos := make([]BatchDTO, len(views))
	for i, v := range views {
		dtos[i] = toBatchDTO(v.Batch, &v.Snapshot)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBatch registers a new batch.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Service.RegisterBatch(r.Context(), req.Description, req.TotalQuantity)
	if err != nil {
		writeDomainError(w, "Failed to register batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(b, nil))
}

// GetBatch returns a single batch with its snapshot.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	c, err := h.Service.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	b, ok := c.Batches[batchID]
	if !ok {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}
	snap, _ := ledger.SnapshotFor(c, batchID)
	writeJSON(w, http.StatusOK, toBatchDTO(b, &snap))
}

// GetSnapshot returns the reconciled figures for one batch.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	snap, err := h.Service.Snapshot(r.Context(), batchID)
	if err != nil {
		writeDomainError(w, "Failed to compute snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// AdjustBatch applies an administrative total correction.
func (h *Handler) AdjustBatch(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	var req AdjustBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Service.AdjustBatchTotal(r.Context(), batchID, req.NewTotal)
	if err != nil {
		writeDomainError(w, "Failed to adjust batch total", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b, nil))
}

// ListBatchOffers returns a batch's offers, optionally filtered by status.
func (h *Handler) ListBatchOffers(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	c, err := h.Service.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	if _, ok := c.Batches[batchID]; !ok {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}

	var offers []ledger.Offer
	if status := r.URL.Query().Get("status"); status != "" {
		offers = ledger.OffersByStatus(c, batchID, ledger.OfferStatus(status))
	} else {
		offers = c.OffersForBatch(batchID)
	}

	dtos := make([]OfferDTO, len(offers))
	for i, o := range offers {
		dtos[i] = toOfferDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRevenue returns the margin over a flat per-unit cost basis for a
// batch's sold offers. The cost basis is the caller's concern; this
// endpoint accepts it as ?unit_cost=.
func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	unitCost, err := decimal.NewFromString(r.URL.Query().Get("unit_cost"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_cost (decimal string required)", err)
		return
	}

	c, err := h.Service.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	if _, ok := c.Batches[batchID]; !ok {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}

	sold := ledger.OffersByStatus(c, batchID, ledger.OfferSold)
	revenue := ledger.Revenue(sold, func(ledger.Offer) decimal.Decimal { return unitCost })

	writeJSON(w, http.StatusOK, RevenueDTO{
		BatchID:   string(batchID),
		UnitCost:  unitCost.String(),
		SoldCount: len(sold),
		Revenue:   revenue.String(),
	})
}

// =============================================================================
// DELEGATION HANDLERS
// =============================================================================

// CreateDelegation grants part of a batch to a reseller.
func (h *Handler) CreateDelegation(w http.ResponseWriter, r *http.Request) {
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	var req CreateDelegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	floorPrice, err := decimal.NewFromString(req.FloorPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid floor_price (decimal string required)", err)
		return
	}

	d, err := h.Service.CreateDelegation(r.Context(), batchID, ledger.SellerID(req.SellerID), req.Quantity, floorPrice)
	if err != nil {
		writeDomainError(w, "Failed to create delegation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDelegationDTO(d, d.DelegatedQuantity, d.DelegatedQuantity))
}

// GetDelegation returns a grant with both balance views: net available
// (seller-facing) and remaining balance (owner-facing).
func (h *Handler) GetDelegation(w http.ResponseWriter, r *http.Request) {
	delegationID := ledger.DelegationID(chi.URLParam(r, "id"))

	c, err := h.Service.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	d, ok := c.Delegations[delegationID]
	if !ok {
		writeError(w, http.StatusNotFound, "Delegation not found", nil)
		return
	}

	offers := c.OffersForDelegation(delegationID)
	writeJSON(w, http.StatusOK, toDelegationDTO(d,
		ledger.NetAvailable(d, offers),
		ledger.RemainingBalance(d, offers)))
}

// RevokeDelegation withdraws a grant.
func (h *Handler) RevokeDelegation(w http.ResponseWriter, r *http.Request) {
	delegationID := ledger.DelegationID(chi.URLParam(r, "id"))

	d, outcome, err := h.Service.RevokeDelegation(r.Context(), delegationID)
	if err != nil {
		writeDomainError(w, "Failed to revoke delegation", err)
		return
	}

	resp := RevokeDelegationResponse{Outcome: string(outcome)}
	if outcome == ledger.RevokeArchived {
		dto := toDelegationDTO(d, 0, 0)
		resp.Delegation = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// OFFER HANDLERS
// =============================================================================

// CreateOffer generates a new client-facing offer link.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_price (decimal string required)", err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at (RFC 3339 required)", err)
			return
		}
		expiresAt = &t
	}

	o, err := h.Service.CreateOffer(r.Context(), ledger.CreateOfferParams{
		BatchID:      ledger.BatchID(req.BatchID),
		DelegationID: ledger.DelegationID(req.DelegationID),
		ClientRef:    req.ClientRef,
		UnitPrice:    unitPrice,
		Quantity:     req.Quantity,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		writeDomainError(w, "Failed to create offer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferDTO(o))
}

// GetOffer returns a single offer.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerID := ledger.OfferID(chi.URLParam(r, "id"))

	c, err := h.Service.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	o, ok := c.Offers[offerID]
	if !ok {
		writeError(w, http.StatusNotFound, "Offer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTO(o))
}

// transitionHandler builds a handler that moves an offer to a fixed target
// status. The route verb says what the move means; the state machine says
// whether it is legal.
func (h *Handler) transitionHandler(target ledger.OfferStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID := ledger.OfferID(chi.URLParam(r, "id"))

		o, err := h.Service.TransitionOffer(r.Context(), offerID, target)
		if err != nil {
			writeDomainError(w, "Failed to transition offer", err)
			return
		}
		writeJSON(w, http.StatusOK, toOfferDTO(o))
	}
}

// =============================================================================
// RECONCILIATION HANDLER
// =============================================================================

// Reconcile returns the reconciled view of every batch.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile", err)
		return
	}

	dtos := make([]BatchDTO, len(views))
	for i, v := range views {
		dtos[i] = toBatchDTO(v.Batch, &v.Snapshot)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsClientError(err):
		// Guard conflicts: the request was well-formed but loses to the
		// current ledger state.
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
