package domain

// MappedPoint is one indicator row with column names resolved against a
// study's plot titles: "timestamp" plus each plot title in declared order,
// with any trailing raw values beyond the known plots named "plot_N".
// If a study's metadata is unknown, rows are delivered unmapped (Raw set,
// Columns nil).
type MappedPoint struct {
	Columns map[string]interface{}
	Raw     IndicatorRow
}

// UpdateEvent is what the Subscriber Dispatcher emits after applying one
// timescale_update/du message: only what changed in that message, never
// the full materialized state.
type UpdateEvent struct {
	OHLC       []Bar
	Indicators map[string][]MappedPoint // study_id -> new mapped rows
	Graphics   map[string]Drawings       // study_id -> current drawings
}

// IsEmpty reports whether none of OHLC, Indicators or Graphics changed —
// callers must not dispatch such an event.
func (e UpdateEvent) IsEmpty() bool {
	return len(e.OHLC) == 0 && len(e.Indicators) == 0 && len(e.Graphics) == 0
}

// StudyErrorEvent is a structured per-study error surfaced so a consumer
// can drop the affected study without losing the session.
type StudyErrorEvent struct {
	StudyID string
	Reason  string
}

// DropStats is the monotonically increasing bookkeeping the dispatcher
// exposes for slow-consumer backpressure (§5).
type DropStats struct {
	Dropped uint64
}
