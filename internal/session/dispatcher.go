package session

import (
	"fmt"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// StudyLookup resolves previously loaded study metadata by id. Controller
// satisfies this interface.
type StudyLookup interface {
	LoadedStudy(studyID string) (domain.StudyMetadata, bool)
}

// Dispatcher turns an Interpreter Delta plus a Store Snapshot into the
// domain.UpdateEvent a subscriber receives: §4.5's column mapping for
// indicators and short-code translation for graphics. It holds no mutable
// state of its own.
type Dispatcher struct {
	studies StudyLookup
}

// NewDispatcher returns a Dispatcher resolving study metadata via studies.
func NewDispatcher(studies StudyLookup) *Dispatcher {
	return &Dispatcher{studies: studies}
}

// BuildEvent maps delta against snap and the loaded study metadata. ok is
// false when the resulting event would be empty — callers must not
// dispatch such an event (§4.5).
func (d *Dispatcher) BuildEvent(delta Delta, snap Snapshot) (event domain.UpdateEvent, ok bool) {
	event.OHLC = delta.NewBars

	if len(delta.IndicatorUpdates) > 0 {
		event.Indicators = make(map[string][]domain.MappedPoint, len(delta.IndicatorUpdates))
		for studyID, rows := range delta.IndicatorUpdates {
			meta, known := d.studies.LoadedStudy(studyID)
			points := make([]domain.MappedPoint, len(rows))
			for i, row := range rows {
				if !known {
					points[i] = domain.MappedPoint{Raw: row}
					continue
				}
				points[i] = domain.MappedPoint{Columns: mapColumns(meta, row), Raw: row}
			}
			event.Indicators[studyID] = points
		}
	}

	if len(delta.GraphicsChanged) > 0 {
		event.Graphics = make(map[string]domain.Drawings, len(delta.GraphicsChanged))
		for studyID := range delta.GraphicsChanged {
			event.Graphics[studyID] = translateDrawings(snap.GraphicsRaw[studyID], snap.GraphicsIndexes)
		}
	}

	if event.IsEmpty() {
		return event, false
	}
	return event, true
}

// mapColumns derives column names as ["timestamp"] + plot titles (in the
// metadata's declared order) and zips them against row; any trailing
// values beyond the named columns are keyed "plot_N".
func mapColumns(meta domain.StudyMetadata, row domain.IndicatorRow) map[string]interface{} {
	names := make([]string, 0, len(meta.Plots)+1)
	names = append(names, "timestamp")
	for _, p := range meta.Plots {
		names = append(names, p.Title)
	}

	cols := make(map[string]interface{}, len(row))
	for i, v := range row {
		if i < len(names) {
			cols[names[i]] = v
			continue
		}
		cols[fmt.Sprintf("plot_%d", i-1)] = v
	}
	return cols
}
