package sight

import (
	"sort"
	"sync"
	"time"
)

// TableEstimate is the latest estimate held for one table
type TableEstimate struct {
	TableID      string    `json:"tableId"`
	Observations int       `json:"observations"`
	Result       Result    `json:"result"`
	Timestamp    time.Time `json:"timestamp"`
}

// EstimateTracker keeps the latest estimate and observation set per table
// for the HTTP endpoints
type EstimateTracker struct {
	mu           sync.RWMutex
	estimates    map[string]*TableEstimate
	observations map[string][]Observation
	now          func() time.Time
}

// NewEstimateTracker creates an empty tracker
func NewEstimateTracker() *EstimateTracker {
	return &EstimateTracker{
		estimates:    make(map[string]*TableEstimate),
		observations: make(map[string][]Observation),
		now:          time.Now,
	}
}

// Update stores a table's estimate together with the observations it was fitted on
func (t *EstimateTracker) Update(tableID string, observations []Observation, result Result) *TableEstimate {
	obs := make([]Observation, len(observations))
	copy(obs, observations)

	est := &TableEstimate{
		TableID:      tableID,
		Observations: len(obs),
		Result:       result,
		Timestamp:    t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.estimates[tableID] = est
	t.observations[tableID] = obs

	out := *est
	return &out
}

// Get returns a copy of a table's latest estimate
func (t *EstimateTracker) Get(tableID string) (*TableEstimate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	est, ok := t.estimates[tableID]
	if !ok {
		return nil, false
	}
	out := *est
	return &out, true
}

// Observations returns a copy of the observation set behind a table's estimate
func (t *EstimateTracker) Observations(tableID string) ([]Observation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obs, ok := t.observations[tableID]
	if !ok {
		return nil, false
	}
	out := make([]Observation, len(obs))
	copy(out, obs)
	return out, true
}

// All returns copies of every estimate ordered by table ID
func (t *EstimateTracker) All() []*TableEstimate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*TableEstimate, 0, len(t.estimates))
	for _, est := range t.estimates {
		c := *est
		result = append(result, &c)
	}
	sortEstimates(result)
	return result
}

func sortEstimates(estimates []*TableEstimate) {
	sort.Slice(estimates, func(i, j int) bool {
		return estimates[i].TableID < estimates[j].TableID
	})
}

// HasEstimates returns true once at least one table has been estimated
func (t *EstimateTracker) HasEstimates() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.estimates) > 0
}
