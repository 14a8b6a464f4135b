package domain

// Merge combines freshly fetched records with the cached ones, keeping one entry per id.
// On collision the greater created_at wins and incoming wins ties, so the outcome does not
// depend on the order the slices were built in. The result is sorted newest first.
func Merge(incoming, existing []Record) []Record {
	byID := make(map[string]Record, len(incoming)+len(existing))
	for _, r := range existing {
		if cur, ok := byID[r.ID]; !ok || r.CreatedAt > cur.CreatedAt {
			byID[r.ID] = r
		}
	}
	for _, r := range incoming {
		if cur, ok := byID[r.ID]; !ok || r.CreatedAt >= cur.CreatedAt {
			byID[r.ID] = r
		}
	}

	out := make([]Record, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	SortNewestFirst(out)
	return out
}

// CutoffMarker returns the newest created_at among records. ok is false when no record carries one.
func CutoffMarker(records []Record) (marker string, ok bool) {
	for _, r := range records {
		if r.CreatedAt == "" {
			continue
		}
		if !ok || r.CreatedAt > marker {
			marker = r.CreatedAt
			ok = true
		}
	}
	return marker, ok
}
