// Package session implements the stateful half of the Chart Session
// Engine: the handshake state machine, the delta interpreter, and the
// subscriber dispatcher. None of it performs socket I/O directly — that
// lives in internal/transport, which drives Controller and Interpreter
// from its single reader goroutine.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nvkrylov/tvchart-session/internal/domain"
	"github.com/nvkrylov/tvchart-session/internal/protocol"
)

// Sender is the minimal transport capability the Controller needs: frame
// and write one method call. Implementations must not block on a server
// acknowledgement — state transitions are strictly local to the send.
type Sender interface {
	Send(method string, params []interface{}) error
}

const (
	scriptIndicatorKind = "Script@tv-scripting-101!"
	strategyKind        = "StrategyScript@tv-scripting-101!"
	pricesSeriesKey     = "$prices"
	pricesTable         = "st1"
)

// Controller drives the DISCONNECTED -> ... -> STUDIES_ACTIVE handshake
// described in spec.md §4.3. It owns the chart session id and the set of
// studies added so far; OHLC/indicator/graphics state lives in Interpreter.
type Controller struct {
	mu sync.Mutex

	sender    Sender
	state     domain.SessionState
	sessionID string
	authToken string

	loadedStudies map[string]domain.StudyMetadata
}

// NewController constructs a Controller bound to sender, in the
// DISCONNECTED state, with a freshly generated chart session id.
func NewController(sender Sender) (*Controller, error) {
	id, err := protocol.NewChartSessionID()
	if err != nil {
		return nil, err
	}
	return &Controller{
		sender:        sender,
		state:         domain.StateDisconnected,
		sessionID:     id,
		loadedStudies: make(map[string]domain.StudyMetadata),
	}, nil
}

// State returns the controller's current state.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the stable chart_session_id for the lifetime of the
// connection.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// MarkConnected transitions DISCONNECTED -> CONNECTED after a successful
// dial. The transport layer calls this once the socket is open.
func (c *Controller) MarkConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateDisconnected {
		return fmt.Errorf("%w: MarkConnected from %s", domain.ErrInvalidTransition, c.state)
	}
	c.state = domain.StateConnected
	return nil
}

// Authenticate sends set_auth_token and transitions CONNECTED -> AUTHED.
// Nothing calls it automatically: transport.New stops at CONNECTED, and the
// caller invokes Authenticate next, before OpenChart.
func (c *Controller) Authenticate(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateConnected {
		return fmt.Errorf("%w: Authenticate from %s", domain.ErrInvalidTransition, c.state)
	}
	c.authToken = token
	if err := c.sender.Send("set_auth_token", []interface{}{token}); err != nil {
		return err
	}
	c.state = domain.StateAuthed
	return nil
}

// OpenChart sends chart_create_session and transitions AUTHED -> CHART_OPEN.
func (c *Controller) OpenChart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateAuthed {
		return fmt.Errorf("%w: OpenChart from %s", domain.ErrInvalidTransition, c.state)
	}
	if err := c.sender.Send("chart_create_session", []interface{}{c.sessionID, ""}); err != nil {
		return err
	}
	c.state = domain.StateChartOpen
	return nil
}

// Resolve sends resolve_symbol and transitions CHART_OPEN -> SYMBOL_RESOLVED.
func (c *Controller) Resolve(symbol, seriesID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateChartOpen {
		return fmt.Errorf("%w: Resolve from %s", domain.ErrInvalidTransition, c.state)
	}
	encoded, err := json.Marshal(map[string]string{"symbol": symbol, "adjustment": "splits"})
	if err != nil {
		return err
	}
	payload := "=" + string(encoded)
	if err := c.sender.Send("resolve_symbol", []interface{}{c.sessionID, seriesID, payload}); err != nil {
		return err
	}
	c.state = domain.StateSymbolResolved
	return nil
}

// CreateSeries sends create_series and transitions SYMBOL_RESOLVED ->
// SERIES_ACTIVE. The third wire parameter is a hardcoded "s1" regardless
// of seriesID — preserved verbatim from the original client (spec.md §9
// Open Questions / REDESIGN FLAGS: "do not guess — mirror source until
// clarified").
func (c *Controller) CreateSeries(seriesID, timeframe string, rng int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSymbolResolved {
		return fmt.Errorf("%w: CreateSeries from %s", domain.ErrInvalidTransition, c.state)
	}
	params := []interface{}{c.sessionID, pricesSeriesKey, "s1", seriesID, timeframe, rng}
	if err := c.sender.Send("create_series", params); err != nil {
		return err
	}
	c.state = domain.StateSeriesActive
	return nil
}

// AddStudy sends create_study and transitions SERIES_ACTIVE ->
// STUDIES_ACTIVE, or stays in STUDIES_ACTIVE on subsequent calls
// (idempotent additive, per spec.md §4.3).
func (c *Controller) AddStudy(studyID string, meta domain.StudyMetadata, customInputs map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSeriesActive && c.state != domain.StateStudiesActive {
		return fmt.Errorf("%w: AddStudy from %s", domain.ErrInvalidTransition, c.state)
	}

	inputs := buildStudyInputs(meta, customInputs)

	kind := scriptIndicatorKind
	if meta.IsStrategy() {
		kind = strategyKind
	}

	params := []interface{}{c.sessionID, studyID, pricesTable, pricesSeriesKey, kind, inputs}
	if err := c.sender.Send("create_study", params); err != nil {
		return err
	}

	c.loadedStudies[studyID] = meta
	c.state = domain.StateStudiesActive
	return nil
}

// LoadedStudy returns the metadata recorded for studyID, if any.
func (c *Controller) LoadedStudy(studyID string) (domain.StudyMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.loadedStudies[studyID]
	return m, ok
}

// Terminate transitions from any state to TERMINATED — the landing state
// for a server critical_error or a local close().
func (c *Controller) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.StateTerminated
}

// buildStudyInputs implements spec.md §4.3's add_study input construction:
// deep-copy meta.Inputs, overlay custom_inputs onto matching keys' value
// field, then emit the server-facing {v,f,t} shape keyed by input id, plus
// text/pineId/pineVersion.
func buildStudyInputs(meta domain.StudyMetadata, customInputs map[string]interface{}) map[string]interface{} {
	merged := make(map[string]domain.StudyInput, len(meta.Inputs))
	for id, in := range meta.Inputs {
		merged[id] = in
	}
	for id, v := range customInputs {
		if in, ok := merged[id]; ok {
			in.Value = v
			merged[id] = in
		}
	}

	out := map[string]interface{}{
		"text": meta.Script,
	}
	if meta.PineID != "" {
		out["pineId"] = meta.PineID
	}
	if meta.PineVersion != "" {
		out["pineVersion"] = meta.PineVersion
	}
	for id, in := range merged {
		out[id] = map[string]interface{}{
			"v": in.Value,
			"f": in.IsFake,
			"t": in.Type,
		}
	}
	return out
}
