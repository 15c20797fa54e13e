package session

import (
	"encoding/json"
	"strings"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// graphicTranslator holds the short-code -> long-name dictionaries the
// chart feed uses for label/line/box style fields. Unmapped codes pass
// through verbatim (spec.md §4.5's Translator table).
var graphicTranslator = struct {
	extend      map[string]string
	yLoc        map[string]string
	labelStyle  map[string]string
	lineStyle   map[string]string
	boxStyle    map[string]string
}{
	extend: map[string]string{"r": "right", "l": "left", "b": "both", "n": "none"},
	yLoc:   map[string]string{"pr": "price", "ab": "abovebar", "bl": "belowbar"},
	labelStyle: map[string]string{
		"n": "none", "xcr": "xcross", "cr": "cross", "tup": "triangleup",
		"tdn": "triangledown", "flg": "flag", "cir": "circle", "aup": "arrowup",
		"adn": "arrowdown", "lup": "label_up", "ldn": "label_down", "llf": "label_left",
		"lrg": "label_right", "llwlf": "label_lower_left", "llwrg": "label_lower_right",
		"luplf": "label_upper_left", "luprg": "label_upper_right", "lcn": "label_center",
		"sq": "square", "dia": "diamond",
	},
	lineStyle: map[string]string{
		"sol": "solid", "dot": "dotted", "dsh": "dashed",
		"al": "arrow_left", "ar": "arrow_right", "ab": "arrow_both",
	},
	boxStyle: map[string]string{"sol": "solid", "dot": "dotted", "dsh": "dashed"},
}

// translateStyle resolves item[key] (when a string) against dict, passing
// unmapped codes through verbatim; a missing or non-string field yields "".
func translateStyle(dict map[string]string, item domain.RawItem, key string) string {
	s, _ := item[key].(string)
	if long, ok := dict[s]; ok {
		return long
	}
	return s
}

// nsPayload is the decoded shape of a study's ns.d string field.
type nsPayload struct {
	GraphicsCmds graphicsCmds `json:"graphicsCmds"`
}

type graphicsCmds struct {
	Erase  []eraseCmd               `json:"erase"`
	Create map[string][]createGroup `json:"create"`
}

type eraseCmd struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	ID     string `json:"id"`
}

type createGroup struct {
	Data []domain.RawItem `json:"data"`
}

func decodeNSPayload(raw string) (nsPayload, error) {
	var p nsPayload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber() // keep x/x1/x2 as json.Number so index resolution matches graphicsIndexes' element type
	err := dec.Decode(&p)
	return p, err
}

// applyGraphicsCmds mutates gs in place: erases first (in listed order),
// then creates, exactly as spec.md §4.4 orders them. It returns whether any
// mutation actually took effect.
//
// action=="one" with an absent type is a no-op — preserved verbatim from
// the source, which has no branch handling that combination.
func applyGraphicsCmds(gs domain.GraphicsStore, cmds graphicsCmds) bool {
	changed := false

	for _, e := range cmds.Erase {
		switch e.Action {
		case "all":
			if e.Type == "" {
				for dt := range gs {
					delete(gs, dt)
					changed = true
				}
				continue
			}
			dt := domain.DrawType(e.Type)
			if _, ok := gs[dt]; ok {
				delete(gs, dt)
				changed = true
			}
		case "one":
			if e.Type == "" {
				continue
			}
			dt := domain.DrawType(e.Type)
			items, ok := gs[dt]
			if !ok {
				continue
			}
			if _, ok := items[e.ID]; ok {
				delete(items, e.ID)
				changed = true
			}
		}
	}

	for drawType, groups := range cmds.Create {
		dt := domain.DrawType(drawType)
		items, ok := gs[dt]
		if !ok {
			items = make(map[string]domain.RawItem)
			gs[dt] = items
		}
		for _, g := range groups {
			for _, item := range g.Data {
				id, _ := item["id"].(string)
				items[id] = item
				changed = true
			}
		}
	}

	return changed
}

// resolveIndex maps an integer index into indexes, passing through
// anything else (already-resolved value, out-of-range index, or a
// non-numeric x) unchanged — spec.md §4.5 and invariant 7.
func resolveIndex(x interface{}, indexes []interface{}) interface{} {
	n, ok := asInt(x)
	if !ok || n < 0 || n >= len(indexes) {
		return x
	}
	return indexes[n]
}

func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

// translateDrawings decodes one study's raw GraphicsStore into readable
// Drawings: fields renamed, style codes translated, indices resolved.
func translateDrawings(gs domain.GraphicsStore, indexes []interface{}) domain.Drawings {
	var out domain.Drawings

	for _, item := range gs[domain.DrawLabels] {
		out.Labels = append(out.Labels, domain.Label{
			ID:        stringField(item, "id"),
			X:         resolveIndex(item["x"], indexes),
			Y:         item["y"],
			YLoc:      translateStyle(graphicTranslator.yLoc, item, "yl"),
			Text:      stringField(item, "t"),
			Style:     translateStyle(graphicTranslator.labelStyle, item, "st"),
			Color:     item["ci"],
			TextColor: item["tci"],
			Size:      item["sz"],
			TextAlign: item["ta"],
			ToolTip:   item["tt"],
		})
	}

	for _, item := range gs[domain.DrawLines] {
		out.Lines = append(out.Lines, domain.Line{
			ID:     stringField(item, "id"),
			X1:     resolveIndex(item["x1"], indexes),
			Y1:     item["y1"],
			X2:     resolveIndex(item["x2"], indexes),
			Y2:     item["y2"],
			Extend: translateStyle(graphicTranslator.extend, item, "ex"),
			Style:  translateStyle(graphicTranslator.lineStyle, item, "st"),
			Color:  item["ci"],
			Width:  item["w"],
		})
	}

	for _, item := range gs[domain.DrawBoxes] {
		out.Boxes = append(out.Boxes, domain.Box{
			ID:         stringField(item, "id"),
			X1:         resolveIndex(item["x1"], indexes),
			Y1:         item["y1"],
			X2:         resolveIndex(item["x2"], indexes),
			Y2:         item["y2"],
			Color:      item["c"],
			BgColor:    item["bc"],
			Extend:     translateStyle(graphicTranslator.extend, item, "ex"),
			Style:      translateStyle(graphicTranslator.boxStyle, item, "st"),
			Width:      item["w"],
			Text:       item["t"],
			TextSize:   item["ts"],
			TextColor:  item["tc"],
			TextVAlign: item["tva"],
			TextHAlign: item["tha"],
			TextWrap:   item["tw"],
		})
	}

	out.Tables = rawItems(gs[domain.DrawTables])
	out.Polygons = rawItems(gs[domain.DrawPolygons])
	out.HorizLines = rawItems(gs[domain.DrawHorizLines])
	out.HorizHists = rawItems(gs[domain.DrawHorizHists])

	return out
}

func stringField(item domain.RawItem, key string) string {
	s, _ := item[key].(string)
	return s
}

func rawItems(m map[string]domain.RawItem) []domain.RawItem {
	if len(m) == 0 {
		return nil
	}
	out := make([]domain.RawItem, 0, len(m))
	for _, item := range m {
		out = append(out, item)
	}
	return out
}
