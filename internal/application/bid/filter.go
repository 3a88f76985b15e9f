package bid

import (
	"sort"

	"github.com/agrimarket/negotiation-api/internal/domain"
	"github.com/agrimarket/negotiation-api/internal/pkg/query"
)

// buildFilter renders the query options into a single predicate. Each
// option narrows the result; an empty query keeps everything.
func buildFilter(q domain.BidQuery) func(*domain.Bid) bool {
	var statuses map[string]struct{}
	if len(q.Statuses) > 0 {
		statuses = make(map[string]struct{}, len(q.Statuses))
		for _, s := range q.Statuses {
			statuses[s] = struct{}{}
		}
	}
	return func(b *domain.Bid) bool {
		if statuses != nil {
			if _, ok := statuses[b.Status]; !ok {
				return false
			}
		}
		if q.ProductID != "" && b.ProductID != q.ProductID {
			return false
		}
		if q.NegotiationID != "" && b.NegotiationID != q.NegotiationID {
			return false
		}
		if q.From != nil && b.CreatedAt.Before(*q.From) {
			return false
		}
		if q.To != nil && b.CreatedAt.After(*q.To) {
			return false
		}
		return true
	}
}

// sortBids orders in place. Unknown sort fields fall back to created_at.
func sortBids(bids []domain.Bid, s query.Sort) {
	less := func(i, j int) bool { return bids[i].CreatedAt.Before(bids[j].CreatedAt) }
	switch s.Field {
	case "offered_price":
		less = func(i, j int) bool { return bids[i].OfferedPrice < bids[j].OfferedPrice }
	case "status":
		less = func(i, j int) bool { return bids[i].Status < bids[j].Status }
	}
	if s.Desc {
		orig := less
		less = func(i, j int) bool { return orig(j, i) }
	}
	sort.SliceStable(bids, less)
}

// mergeBids concatenates two GSI result sets, dropping duplicate bid ids,
// and leaves ordering to the caller's sort pass.
func mergeBids(a, b []domain.Bid) []domain.Bid {
	seen := make(map[string]struct{}, len(a))
	out := make([]domain.Bid, 0, len(a)+len(b))
	for _, bid := range a {
		seen[bid.BidID] = struct{}{}
		out = append(out, bid)
	}
	for _, bid := range b {
		if _, ok := seen[bid.BidID]; !ok {
			out = append(out, bid)
		}
	}
	return out
}
