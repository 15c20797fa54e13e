package domain

import (
	"context"
	"time"
)

// MetadataProvider is the out-of-scope HTTP metadata collaborator (§6):
// indicator translation, user data, private indicator listing, layouts.
// The core only needs GetStudyMetadata; the rest round out the external
// interface for a complete client (§11 of SPEC_FULL.md).
type MetadataProvider interface {
	GetStudyMetadata(ctx context.Context, indicatorID, version string) (StudyMetadata, error)
	GetUserData(ctx context.Context) (UserData, error)
}

// UserData is the tolerant result of scraping the TradingView homepage for
// session identity. Any field may be empty.
type UserData struct {
	AuthToken string
	UserID    string
	Username  string
}

// TickSink is the out-of-scope "tick persister" downstream consumer (§1):
// the core only ever calls it from a subscriber goroutine, never from the
// reader goroutine itself.
type TickSink interface {
	SaveBars(ctx context.Context, symbol string, bars []Bar) error
}

// StudySink persists indicator rows, the study-shaped sibling of TickSink.
type StudySink interface {
	SaveIndicatorRows(ctx context.Context, studyID string, rows []MappedPoint) error
}

// AlertSink is the out-of-scope "broadcast bus" downstream consumer (§1):
// it receives structured error events so an operator can react without the
// session itself needing to know how alerts are delivered.
type AlertSink interface {
	NotifyCriticalError(reason string) error
	NotifyStudyError(ev StudyErrorEvent) error
}

// CookieSource supplies browser-session cookies as a list of cookie
// records. The name->value mapping and record-list shapes (§6) are built
// by credentials.FromMap and credentials.FromRecords; no source reads
// cookies out of a native cookie jar. Acquisition from a live browser
// profile is an external, pre-process concern (§1) — this interface only
// models the shapes the core must accept.
type CookieSource interface {
	Cookies(ctx context.Context) ([]Cookie, error)
}

// Cookie is one cookie record in the list-of-dict form described in §6.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Clock abstracts wall-clock reads so idle-timeout and throttling logic is
// testable without a real sleep (§9 Design Notes).
type Clock interface {
	Now() time.Time
}
