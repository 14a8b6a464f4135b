package domain

// SyncMode distinguishes a full rescan from an incremental fetch.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// FetchPlan tells the fetcher how much of a remote collection to walk.
type FetchPlan struct {
	Full   bool
	Cutoff string
}

// PlanFor derives the plan from the cached snapshot: no cutoff marker means a full fetch.
func PlanFor(existing []Record) FetchPlan {
	marker, ok := CutoffMarker(existing)
	if !ok {
		return FetchPlan{Full: true}
	}
	return FetchPlan{Cutoff: marker}
}

// Qualifies reports whether a fetched record should be kept.
func (p FetchPlan) Qualifies(r Record) bool {
	return p.Full || r.CreatedAt > p.Cutoff
}

// Mode returns the sync mode the plan represents.
func (p FetchPlan) Mode() SyncMode {
	if p.Full {
		return SyncModeFull
	}
	return SyncModeIncremental
}
