// Package domain holds the protocol-agnostic state the Chart Session Engine
// materializes from the TradingView chart feed: bars, indicator series and
// graphics overlays.
package domain

import "github.com/shopspring/decimal"

// ChartSessionPrefix is prepended to every generated chart session id.
const ChartSessionPrefix = "cs_"

// SessionState enumerates the Session Controller's forward-only states.
type SessionState string

const (
	StateDisconnected   SessionState = "DISCONNECTED"
	StateConnected      SessionState = "CONNECTED"
	StateAuthed         SessionState = "AUTHED"
	StateChartOpen      SessionState = "CHART_OPEN"
	StateSymbolResolved SessionState = "SYMBOL_RESOLVED"
	StateSeriesActive   SessionState = "SERIES_ACTIVE"
	StateStudiesActive  SessionState = "STUDIES_ACTIVE"
	StateTerminated     SessionState = "TERMINATED"
)

// Bar is one OHLCV row as delivered under the "$prices" series. The first
// element is the bar timestamp; the rest are open, high, low, close, volume
// and whatever trailing fields the server sends. Stored verbatim, in
// server order — no reordering, no dedup.
type Bar []decimal.Decimal

// IndicatorRow is one raw row of a study's "st" series: a timestamp
// followed by plot values in the study's declared order.
type IndicatorRow []decimal.Decimal

// StudyMetadata is the subset of a Pine script's translated metadata the
// codec needs: ordered plot titles, input declarations, and script
// identity. Everything else the server returns is opaque and dropped.
type StudyMetadata struct {
	PineID      string
	PineVersion string
	Script      string
	Type        string // "study", "strategy", or an extra.kind override
	Plots       []PlotDef
	Inputs      map[string]StudyInput
}

// PlotDef is one entry of a study's ordered plot_id -> title mapping.
// StudyMetadata.Plots holds these in the numeric suffix order of "plot_0",
// "plot_1", ...
type PlotDef struct {
	ID    string
	Title string
}

// StudyInput is one declared input of a study, as returned by the
// metadata translate endpoint.
type StudyInput struct {
	Name   string
	Type   string
	Value  interface{}
	IsFake bool
}

// IsStrategy reports whether this study should be created with the
// StrategyScript indicator kind rather than Script.
func (m StudyMetadata) IsStrategy() bool {
	return m.Type == "strategy"
}

// DrawType names a graphics draw kind under a study's graphics store
// ("dwglabels", "dwglines", "dwgboxes", and sibling kinds whose decoding
// is minimal).
type DrawType string

const (
	DrawLabels     DrawType = "dwglabels"
	DrawLines      DrawType = "dwglines"
	DrawBoxes      DrawType = "dwgboxes"
	DrawTables     DrawType = "tables"
	DrawPolygons   DrawType = "polygons"
	DrawHorizLines DrawType = "horizLines"
	DrawHorizHists DrawType = "horizHists"
)

// RawItem is one create-command payload item, keyed by its server-assigned
// id within a draw type. Its shape varies by draw type, so it is kept as a
// generic decoded map and specialized at dispatch time.
type RawItem map[string]interface{}

// GraphicsStore is the per-study nested mapping draw_type -> id -> raw_item
// the Update Interpreter mutates incrementally.
type GraphicsStore map[DrawType]map[string]RawItem

// Label is a dispatch-time decoded "dwglabels" item, x resolved against
// the index array and style codes translated to their long form.
type Label struct {
	ID         string
	X          interface{} // resolved index value, or passthrough
	Y          interface{}
	YLoc       string
	Text       string
	Style      string
	Color      interface{}
	TextColor  interface{}
	Size       interface{}
	TextAlign  interface{}
	ToolTip    interface{}
}

// Line is a dispatch-time decoded "dwglines" item.
type Line struct {
	ID     string
	X1, X2 interface{}
	Y1, Y2 interface{}
	Extend string
	Style  string
	Color  interface{}
	Width  interface{}
}

// Box is a dispatch-time decoded "dwgboxes" item.
type Box struct {
	ID          string
	X1, X2      interface{}
	Y1, Y2      interface{}
	Color       interface{}
	BgColor     interface{}
	Extend      string
	Style       string
	Width       interface{}
	Text        interface{}
	TextSize    interface{}
	TextColor   interface{}
	TextVAlign  interface{}
	TextHAlign  interface{}
	TextWrap    interface{}
}

// Drawings is the dispatch-time decoded form of one study's GraphicsStore:
// readable field names, style codes translated, x/x1/x2 resolved against
// the index array where they are in-range integer indices.
type Drawings struct {
	Labels []Label
	Lines  []Line
	Boxes  []Box
	// Tables, Polygons, HorizLines, HorizHists are preserved on the raw
	// store but are not individually decoded — their presence survives
	// create/erase, their fields are not symbol-translated.
	Tables     []RawItem
	Polygons   []RawItem
	HorizLines []RawItem
	HorizHists []RawItem
}
