package session

import (
	"sort"
	"strings"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const pricesKey = "$prices"

// Delta is the raw, unmapped result of applying one timescale_update/du
// message: new OHLC bars, newly appended per-study indicator rows, and the
// set of studies whose graphics store changed. Dispatcher turns this into
// a domain.UpdateEvent by adding plot-name mapping and graphics
// translation — the two stay separate so each can be tested in isolation.
type Delta struct {
	NewBars          []domain.Bar
	IndicatorUpdates map[string][]domain.IndicatorRow
	GraphicsChanged  map[string]bool
}

// Interpreter applies decoded timescale_update/du payloads to a Store, as
// spec.md §4.4 describes: $prices bars are appended, "st*" study rows are
// appended, and graphics commands mutate the per-study graphics store
// incrementally. Driven exclusively by the transport layer's single reader
// goroutine — Apply is not safe to call concurrently with itself.
type Interpreter struct {
	store *Store
}

// NewInterpreter returns an Interpreter that mutates store.
func NewInterpreter(store *Store) *Interpreter {
	return &Interpreter{store: store}
}

// Apply mutates the store per data (the "data" mapping of a du/
// timescale_update envelope) and returns what changed. All mutations from
// one call are applied before Apply returns, so a Dispatcher reading the
// store afterwards always sees a consistent post-state (§4.4 atomicity).
func (in *Interpreter) Apply(data map[string]interface{}) Delta {
	in.store.mu.Lock()
	defer in.store.mu.Unlock()

	delta := Delta{
		IndicatorUpdates: make(map[string][]domain.IndicatorRow),
		GraphicsChanged:  make(map[string]bool),
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := data[key]
		switch {
		case key == pricesKey:
			in.applyPrices(val, &delta)
		case strings.HasPrefix(key, "st"):
			if m, ok := val.(map[string]interface{}); ok {
				in.applyStudy(key, m, &delta)
			}
		}
	}
	return delta
}

func (in *Interpreter) applyPrices(val interface{}, delta *Delta) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return
	}
	entries, ok := m["s"].([]interface{})
	if !ok {
		return
	}
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		v, present := entry["v"]
		if !present {
			continue
		}
		bar := domain.Bar(toVector(v))
		in.store.ohlc = append(in.store.ohlc, bar)
		delta.NewBars = append(delta.NewBars, bar)
	}
}

func (in *Interpreter) applyStudy(studyID string, val map[string]interface{}, delta *Delta) {
	if stList, ok := val["st"].([]interface{}); ok && len(stList) > 0 {
		for _, raw := range stList {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			v, present := entry["v"]
			if !present {
				continue
			}
			row := domain.IndicatorRow(toVector(v))
			in.store.indicatorData[studyID] = append(in.store.indicatorData[studyID], row)
			delta.IndicatorUpdates[studyID] = append(delta.IndicatorUpdates[studyID], row)
		}
	}

	ns, ok := val["ns"].(map[string]interface{})
	if !ok {
		return
	}

	if idx, present := ns["indexes"]; present {
		if s, isStr := idx.(string); !isStr || s != "nochange" {
			if arr, ok := idx.([]interface{}); ok {
				in.store.graphicsIndexes = arr
			}
		}
	}

	d, _ := ns["d"].(string)
	if d == "" {
		return
	}
	parsed, err := decodeNSPayload(d)
	if err != nil {
		// Decode-local: skip this ns.d without logging; the rest of the
		// message proceeds (§7).
		return
	}

	gs := in.store.graphicsForStudy(studyID)
	if applyGraphicsCmds(gs, parsed.GraphicsCmds) {
		delta.GraphicsChanged[studyID] = true
	}
}
