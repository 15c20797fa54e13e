package session

import (
	"testing"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

type recordingSender struct {
	calls []call
}

type call struct {
	method string
	params []interface{}
}

func (s *recordingSender) Send(method string, params []interface{}) error {
	s.calls = append(s.calls, call{method: method, params: params})
	return nil
}

func newHandshakeController(t *testing.T) (*Controller, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	c, err := NewController(sender)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, sender
}

func TestControllerHandshakeTransitionsForward(t *testing.T) {
	c, sender := newHandshakeController(t)

	if err := c.MarkConnected(); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}
	if c.State() != domain.StateConnected {
		t.Fatalf("expected CONNECTED, got %s", c.State())
	}

	if err := c.Authenticate("tok"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if c.State() != domain.StateAuthed {
		t.Fatalf("expected AUTHED, got %s", c.State())
	}

	if err := c.OpenChart(); err != nil {
		t.Fatalf("OpenChart: %v", err)
	}
	if c.State() != domain.StateChartOpen {
		t.Fatalf("expected CHART_OPEN, got %s", c.State())
	}

	if err := c.Resolve("NASDAQ:AAPL", "sds_1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.State() != domain.StateSymbolResolved {
		t.Fatalf("expected SYMBOL_RESOLVED, got %s", c.State())
	}

	if err := c.CreateSeries("s_real_id", "1", 300); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if c.State() != domain.StateSeriesActive {
		t.Fatalf("expected SERIES_ACTIVE, got %s", c.State())
	}

	meta := domain.StudyMetadata{Script: "src", Type: "study"}
	if err := c.AddStudy("st1", meta, nil); err != nil {
		t.Fatalf("AddStudy: %v", err)
	}
	if c.State() != domain.StateStudiesActive {
		t.Fatalf("expected STUDIES_ACTIVE, got %s", c.State())
	}

	// Idempotent additive: a second study keeps STUDIES_ACTIVE.
	if err := c.AddStudy("st2", meta, nil); err != nil {
		t.Fatalf("second AddStudy: %v", err)
	}
	if c.State() != domain.StateStudiesActive {
		t.Fatalf("expected to remain STUDIES_ACTIVE, got %s", c.State())
	}

	if len(sender.calls) != 6 {
		t.Fatalf("expected 6 sent frames, got %d: %+v", len(sender.calls), sender.calls)
	}
}

// create_series hardcodes "s1" at wire position 2 regardless of seriesID,
// which still appears at position 3 — preserved verbatim from the source.
func TestCreateSeriesHardcodesS1(t *testing.T) {
	c, sender := newHandshakeController(t)
	c.MarkConnected()
	c.Authenticate("tok")
	c.OpenChart()
	c.Resolve("NASDAQ:AAPL", "sds_1")

	if err := c.CreateSeries("the_real_series_id", "60", 500); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	last := sender.calls[len(sender.calls)-1]
	if last.method != "create_series" {
		t.Fatalf("expected create_series, got %s", last.method)
	}
	if last.params[2] != "s1" {
		t.Fatalf("expected hardcoded s1 at index 2, got %v", last.params[2])
	}
	if last.params[3] != "the_real_series_id" {
		t.Fatalf("expected real series id preserved at index 3, got %v", last.params[3])
	}
}

func TestOutOfOrderTransitionRejected(t *testing.T) {
	c, _ := newHandshakeController(t)
	if err := c.OpenChart(); err == nil {
		t.Fatalf("expected OpenChart from DISCONNECTED to fail")
	}
}

func TestTerminateFromAnyState(t *testing.T) {
	c, _ := newHandshakeController(t)
	c.MarkConnected()
	c.Terminate()
	if c.State() != domain.StateTerminated {
		t.Fatalf("expected TERMINATED, got %s", c.State())
	}
}

func TestAddStudyBuildsMergedInputs(t *testing.T) {
	c, sender := newHandshakeController(t)
	c.MarkConnected()
	c.Authenticate("tok")
	c.OpenChart()
	c.Resolve("NASDAQ:AAPL", "sds_1")
	c.CreateSeries("s_real", "60", 300)

	meta := domain.StudyMetadata{
		Script:      "src",
		PineID:      "STD;RSI",
		PineVersion: "30.0",
		Type:        "strategy",
		Inputs: map[string]domain.StudyInput{
			"in_0": {Name: "length", Type: "integer", Value: 14},
		},
	}
	if err := c.AddStudy("st1", meta, map[string]interface{}{"in_0": 21}); err != nil {
		t.Fatalf("AddStudy: %v", err)
	}

	last := sender.calls[len(sender.calls)-1]
	if last.method != "create_study" {
		t.Fatalf("expected create_study, got %s", last.method)
	}
	if last.params[4] != strategyKind {
		t.Fatalf("expected strategy kind, got %v", last.params[4])
	}
	inputs, ok := last.params[5].(map[string]interface{})
	if !ok {
		t.Fatalf("expected inputs map, got %T", last.params[5])
	}
	in0, ok := inputs["in_0"].(map[string]interface{})
	if !ok || in0["v"] != 21 {
		t.Fatalf("expected overlay value 21 for in_0, got %+v", inputs["in_0"])
	}
}
