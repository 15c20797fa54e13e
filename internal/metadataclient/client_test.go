package metadataclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// redirectingTransport sends every request to a fixed test server instead
// of the real TradingView host the package constants point at, keeping
// the request's original path and query intact.
type redirectingTransport struct {
	base *url.URL
}

func (t redirectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.base.Scheme
	req.URL.Host = t.base.Host
	req.Host = t.base.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	return New(&http.Client{Transport: redirectingTransport{base: base}})
}

func TestGetStudyMetadataToleratesNonListInputsAndNonMappingStyles(t *testing.T) {
	const body = `{
		"success": true,
		"result": {
			"ilTemplate": "study(...)",
			"metaInfo": {
				"scriptIdPart": "STD;SMA",
				"inputs": {"not": "a list"},
				"styles": ["not", "a", "mapping"],
				"pine": {"Version": "1"}
			}
		}
	}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	meta, err := client.GetStudyMetadata(context.Background(), "STD;SMA", "last")
	if err != nil {
		t.Fatalf("expected tolerant decode, got error: %v", err)
	}
	if len(meta.Inputs) != 0 {
		t.Fatalf("expected inputs skipped for shape mismatch, got %+v", meta.Inputs)
	}
	if len(meta.Plots) != 0 {
		t.Fatalf("expected plots skipped for shape mismatch, got %+v", meta.Plots)
	}
	if meta.PineID != "STD;SMA" || meta.Script != "study(...)" {
		t.Fatalf("unexpected metadata fields: %+v", meta)
	}
}

func TestGetStudyMetadataMapsPlotsAndInputs(t *testing.T) {
	const body = `{
		"success": true,
		"result": {
			"ilTemplate": "study(...)",
			"metaInfo": {
				"scriptIdPart": "STD;RSI",
				"inputs": [
					{"id": "length", "name": "Length", "type": "integer", "defval": 14, "isFake": false},
					{"id": "text", "name": "text", "type": "text", "defval": "ignored", "isFake": false}
				],
				"styles": {
					"plot_1": {"title": "RSI Signal"},
					"plot_0": {"title": "RSI"}
				}
			}
		}
	}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	meta, err := client.GetStudyMetadata(context.Background(), "STD;RSI", "last")
	if err != nil {
		t.Fatalf("GetStudyMetadata: %v", err)
	}

	if _, ok := meta.Inputs["length"]; !ok {
		t.Fatalf("expected 'length' input present, got %+v", meta.Inputs)
	}
	if _, ok := meta.Inputs["text"]; ok {
		t.Fatal("reserved input id 'text' must not appear as an editable input")
	}

	if len(meta.Plots) != 2 {
		t.Fatalf("expected 2 plots, got %d", len(meta.Plots))
	}
	if meta.Plots[0].ID != "plot_0" || meta.Plots[1].ID != "plot_1" {
		t.Fatalf("plots not sorted by numeric suffix: %+v", meta.Plots)
	}
}

func TestGetStudyMetadataSurfacesServerFailureAsErrMetadataHTTP(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "reason": "indicator not found"}`))
	})

	_, err := client.GetStudyMetadata(context.Background(), "STD;MISSING", "last")
	if !errors.Is(err, domain.ErrMetadataHTTP) {
		t.Fatalf("expected ErrMetadataHTTP, got %v", err)
	}
}

func TestSortPlotsByNumericSuffixOrdersBeforeNonSuffixed(t *testing.T) {
	plots := []domain.PlotDef{
		{ID: "plot_10", Title: "j"},
		{ID: "custom", Title: "z"},
		{ID: "plot_2", Title: "c"},
		{ID: "plot_0", Title: "a"},
	}
	sortPlotsByNumericSuffix(plots)

	want := []string{"plot_0", "plot_2", "plot_10", "custom"}
	for i, id := range want {
		if plots[i].ID != id {
			t.Fatalf("position %d: got %q, want %q (full: %+v)", i, plots[i].ID, id, plots)
		}
	}
}
