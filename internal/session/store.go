package session

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// Store holds the materialized, append-only protocol state for one chart
// session: OHLC bars, per-study indicator rows, the per-study graphics
// stores, and the global graphics index array. It is mutated exclusively
// by Interpreter.Apply from the single reader goroutine; all other access
// goes through Snapshot, which publishes an immutable copy under a
// read lock (spec.md §5's "reference choice (b)").
type Store struct {
	mu sync.RWMutex

	ohlc            []domain.Bar
	indicatorData   map[string][]domain.IndicatorRow
	graphicsRaw     map[string]domain.GraphicsStore
	graphicsIndexes []interface{}
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		indicatorData: make(map[string][]domain.IndicatorRow),
		graphicsRaw:   make(map[string]domain.GraphicsStore),
	}
}

// Snapshot is an immutable point-in-time copy of Store, safe to read from
// any goroutine without further synchronization.
type Snapshot struct {
	OHLC            []domain.Bar
	IndicatorData   map[string][]domain.IndicatorRow
	GraphicsRaw     map[string]domain.GraphicsStore
	GraphicsIndexes []interface{}
}

// Snapshot copies the current state out from under the lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Snapshot{
		OHLC:            append([]domain.Bar(nil), s.ohlc...),
		IndicatorData:   make(map[string][]domain.IndicatorRow, len(s.indicatorData)),
		GraphicsRaw:     make(map[string]domain.GraphicsStore, len(s.graphicsRaw)),
		GraphicsIndexes: append([]interface{}(nil), s.graphicsIndexes...),
	}
	for k, v := range s.indicatorData {
		out.IndicatorData[k] = append([]domain.IndicatorRow(nil), v...)
	}
	for studyID, gs := range s.graphicsRaw {
		copied := make(domain.GraphicsStore, len(gs))
		for dt, items := range gs {
			copiedItems := make(map[string]domain.RawItem, len(items))
			for id, item := range items {
				copiedItems[id] = item
			}
			copied[dt] = copiedItems
		}
		out.GraphicsRaw[studyID] = copied
	}
	return out
}

// graphicsForStudy ensures a per-draw-type map exists for studyID and
// returns it, for in-place mutation by the caller (which already holds
// s.mu).
func (s *Store) graphicsForStudy(studyID string) domain.GraphicsStore {
	gs, ok := s.graphicsRaw[studyID]
	if !ok {
		gs = make(domain.GraphicsStore)
		s.graphicsRaw[studyID] = gs
	}
	return gs
}

// toDecimal converts a decoded JSON scalar (json.Number, float64, string,
// or int) to decimal.Decimal, defaulting to zero for anything else. Used
// to convert bar/indicator vector elements, which arrive as json.Number
// thanks to protocol.Decode's UseNumber decoder.
func toDecimal(v interface{}) decimal.Decimal {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	default:
		return decimal.Zero
	}
}

func toVector(raw interface{}) []decimal.Decimal {
	arr, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]decimal.Decimal, len(arr))
	for i, v := range arr {
		out[i] = toDecimal(v)
	}
	return out
}
