package market

import "sort"

// ---------------------------------------------------------------------------
// Canonicalizer — dedup, rank, paginate
// Stateless; safe to call from the discovery loop and the event callback
// concurrently.
// ---------------------------------------------------------------------------

// Dedup collapses pools sharing a base token address (case-insensitive).
// The first occurrence wins, so callers control precedence via input order.
func Dedup(pools []Pool) []Pool {
	seen := make(map[string]struct{}, len(pools))
	out := make([]Pool, 0, len(pools))
	for _, p := range pools {
		key := p.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Sort orders pools by the query's sort key and order. The sort is stable:
// ties keep their input order.
func Sort(pools []Pool, sortBy, sortOrder string) {
	less := comparator(sortBy)
	if sortOrder == SortOrderDesc {
		inner := less
		less = func(a, b Pool) bool { return inner(b, a) }
	}
	sort.SliceStable(pools, func(i, j int) bool {
		return less(pools[i], pools[j])
	})
}

func comparator(sortBy string) func(a, b Pool) bool {
	switch sortBy {
	case SortByVolume:
		return func(a, b Pool) bool { return a.VolumeUSD.LessThan(b.VolumeUSD) }
	case SortByHolderCount:
		return func(a, b Pool) bool { return a.HolderCount < b.HolderCount }
	case SortByCreatedAt:
		return func(a, b Pool) bool { return a.CreatedAtUnix < b.CreatedAtUnix }
	default: // SortByMarketCap
		return func(a, b Pool) bool { return a.MarketCapUSD.LessThan(b.MarketCapUSD) }
	}
}

// Paginate slices one page out of the ranked list.
// hasMore is true while page*limit < total.
func Paginate(pools []Pool, page, limit int) RankedPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	total := len(pools)
	start := (page - 1) * limit
	end := page * limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return RankedPage{
		Pools:   pools[start:end],
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: page*limit < total,
	}
}

// Canonicalize merges candidate pools from any number of sources into one
// ranked page: dedup by base token address (first wins), stable sort by the
// query's key, then paginate.
func Canonicalize(pools []Pool, q Query) RankedPage {
	q = q.Normalize()

	merged := Dedup(pools)
	Sort(merged, q.SortBy, q.SortOrder)
	return Paginate(merged, q.Page, q.Limit)
}
