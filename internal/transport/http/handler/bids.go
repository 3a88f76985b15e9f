package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrimarket/negotiation-api/internal/application/bid"
	"github.com/agrimarket/negotiation-api/internal/domain"
	"github.com/agrimarket/negotiation-api/internal/pkg/query"
	"github.com/agrimarket/negotiation-api/internal/pkg/validate"
	"github.com/agrimarket/negotiation-api/internal/transport/http/middleware"
)

// BidHandler handles bid lifecycle and query endpoints.
type BidHandler struct {
	svc bid.Service
}

func NewBidHandler(svc bid.Service) *BidHandler { return &BidHandler{svc: svc} }

func (h *BidHandler) Place(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.Place(r.Context(), identity, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BidHandler) Counter(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.CounterBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.Counter(r.Context(), identity, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Accept is the farmer accepting a pending bid.
func (h *BidHandler) Accept(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	b, err := h.svc.Accept(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// AcceptCounter is the buyer accepting the farmer's counter-offer.
func (h *BidHandler) AcceptCounter(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	b, err := h.svc.AcceptByBuyer(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListByProduct is public: bid history on a product is visible without auth.
func (h *BidHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BidHandler) ListByNegotiation(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := h.svc.ListByNegotiation(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListMine serves the caller's bid dashboard with the filter grammar.
func (h *BidHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q, err := parseBidQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.svc.ListForUser(r.Context(), identity, q)
	if err != nil {
		httpError(w, err)
		return
	}
	writeListEnvelope(w, items, total, q)
}

// ListForUser is the admin cross-user variant; the target comes from the path.
func (h *BidHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q, err := parseBidQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.UserID = chi.URLParam(r, "userId")
	items, total, err := h.svc.ListForUserByAdmin(r.Context(), identity, q)
	if err != nil {
		httpError(w, err)
		return
	}
	writeListEnvelope(w, items, total, q)
}

func writeListEnvelope(w http.ResponseWriter, items []domain.Bid, total int, q domain.BidQuery) {
	p := query.NormalizePage(q.Page, q.Limit)
	writeJSON(w, http.StatusOK, ListEnvelope{
		Success: true,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		Items:   items,
	})
}

// parseBidQuery reads the shared list grammar off the query string. Unknown
// parameters are ignored; malformed timestamps are a 400.
func parseBidQuery(r *http.Request) (domain.BidQuery, error) {
	qs := r.URL.Query()
	q := domain.BidQuery{
		Role:          qs.Get("role"),
		Statuses:      query.ParseStatuses(qs.Get("status")),
		ProductID:     qs.Get("product_id"),
		NegotiationID: qs.Get("negotiation_id"),
		Sort:          qs.Get("sort"),
	}
	q.Page, _ = strconv.Atoi(qs.Get("page"))
	q.Limit, _ = strconv.Atoi(qs.Get("limit"))

	if q.Role != "" && !domain.ValidRole(q.Role) {
		return q, fmt.Errorf("unknown role %q: %w", q.Role, domain.ErrBadRequest)
	}

	for name, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := qs.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s timestamp, want RFC3339: %w", name, domain.ErrBadRequest)
		}
		*dst = &t
	}
	return q, nil
}
