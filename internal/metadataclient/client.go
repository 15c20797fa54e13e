// Package metadataclient implements the HTTP side of the chart feed: Pine
// script metadata translation and the handful of auxiliary endpoints the
// original extractor exposes (private indicators, layouts, chart tokens,
// layout sources). None of this is framed by the WebSocket protocol —
// spec.md treats it as an external collaborator specified only by its
// inputs/outputs; this package is the concrete adapter original_source/
// supplements it with.
package metadataclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const (
	translateBase  = "https://pine-facade.tradingview.com/pine-facade/translate"
	indicatorsList = "https://pine-facade.tradingview.com/pine-facade/list"
	layoutsBase    = "https://www.tradingview.com/chart-storage-v2/charts/"
	chartTokenURL  = "https://www.tradingview.com/chart-token"
	layoutSources  = "https://charts-storage.tradingview.com/charts-storage/get/layout"
)

// reservedInputIDs are declared inputs the server always sends alongside
// the user-configurable ones; they are skipped rather than treated as
// editable inputs. StudyMetadata takes its script text, pine id and pine
// version from ilTemplate, scriptIdPart and pine.version instead.
var reservedInputIDs = map[string]bool{"text": true, "pineId": true, "pineVersion": true}

// Client fetches and tolerantly decodes TradingView's Pine Facade
// metadata endpoints. The underlying http.Client is expected to carry
// authentication cookies already (see internal/credentials).
type Client struct {
	http *http.Client
}

// New returns a Client issuing requests through httpClient.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient}
}

type translateResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Result  struct {
		ILTemplate string `json:"ilTemplate"`
		MetaInfo   struct {
			ScriptIDPart string `json:"scriptIdPart"`
			Description  string `json:"description"`
			// Inputs and Styles are decoded leniently in GetStudyMetadata:
			// the server's own shape isn't guaranteed (a list where a
			// mapping is expected, or vice versa), so they're captured as
			// raw JSON here and only interpreted if they match.
			Inputs  json.RawMessage `json:"inputs"`
			Styles  json.RawMessage `json:"styles"`
			Pine    struct{ Version string } `json:"pine"`
			Package struct{ Type string }    `json:"package"`
			Extra   struct{ Kind string }    `json:"extra"`
		} `json:"metaInfo"`
	} `json:"result"`
}

type rawInput struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Defval interface{} `json:"defval"`
	IsFake bool        `json:"isFake"`
}

type rawStyle struct {
	Title string `json:"title"`
}

// GetStudyMetadata implements domain.MetadataProvider against
// GET .../pine-facade/translate/{indicatorID}/{version}. Shape deviations
// (inputs not a list, styles not a mapping — defensively typed in the
// original via isinstance checks) are tolerated by skipping the affected
// field rather than failing the whole call.
func (c *Client) GetStudyMetadata(ctx context.Context, indicatorID, version string) (domain.StudyMetadata, error) {
	if version == "" {
		version = "last"
	}
	reqURL := fmt.Sprintf("%s/%s/%s", translateBase, url.PathEscape(indicatorID), url.PathEscape(version))

	var resp translateResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return domain.StudyMetadata{}, fmt.Errorf("%w: translate %s: %v", domain.ErrMetadataHTTP, indicatorID, err)
	}
	if !resp.Success {
		reason := resp.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return domain.StudyMetadata{}, fmt.Errorf("%w: translate %s: %s", domain.ErrMetadataHTTP, indicatorID, reason)
	}

	meta := resp.Result.MetaInfo

	inputs := make(map[string]domain.StudyInput)
	var rawInputs []rawInput
	if len(meta.Inputs) > 0 && json.Unmarshal(meta.Inputs, &rawInputs) == nil {
		for _, in := range rawInputs {
			if reservedInputIDs[in.ID] || in.ID == "" {
				continue
			}
			inputs[in.ID] = domain.StudyInput{
				Name:   in.Name,
				Type:   in.Type,
				Value:  in.Defval,
				IsFake: in.IsFake,
			}
		}
	}

	var plots []domain.PlotDef
	var rawStyles map[string]rawStyle
	if len(meta.Styles) > 0 && json.Unmarshal(meta.Styles, &rawStyles) == nil {
		plots = make([]domain.PlotDef, 0, len(rawStyles))
		for plotID, style := range rawStyles {
			if style.Title == "" {
				continue
			}
			plots = append(plots, domain.PlotDef{ID: plotID, Title: strings.ReplaceAll(style.Title, " ", "_")})
		}
	}
	sortPlotsByNumericSuffix(plots)

	indicatorType := meta.Extra.Kind
	if indicatorType == "" {
		indicatorType = meta.Package.Type
	}
	if indicatorType == "" {
		indicatorType = "study"
	}

	pineID := meta.ScriptIDPart
	if pineID == "" {
		pineID = indicatorID
	}
	pineVersion := meta.Pine.Version
	if pineVersion == "" {
		pineVersion = version
	}

	return domain.StudyMetadata{
		PineID:      pineID,
		PineVersion: pineVersion,
		Script:      resp.Result.ILTemplate,
		Type:        indicatorType,
		Plots:       plots,
		Inputs:      inputs,
	}, nil
}

// sortPlotsByNumericSuffix orders plot_0, plot_1, ... by their numeric
// suffix rather than relying on the server response's (unspecified) map
// iteration order — the source's own mapping has no guaranteed order
// either, so deterministic column assignment requires this sort.
func sortPlotsByNumericSuffix(plots []domain.PlotDef) {
	sort.SliceStable(plots, func(i, j int) bool {
		ni, oki := plotSuffix(plots[i].ID)
		nj, okj := plotSuffix(plots[j].ID)
		if oki && okj {
			return ni < nj
		}
		if oki != okj {
			return oki
		}
		return plots[i].ID < plots[j].ID
	})
}

func plotSuffix(id string) (int, bool) {
	const prefix = "plot_"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// RawDocument is the permissive decoding used for the auxiliary endpoints
// below, whose response shape spec.md does not otherwise specify.
type RawDocument map[string]interface{}

// GetPrivateIndicators lists the authenticated user's saved Pine scripts.
func (c *Client) GetPrivateIndicators(ctx context.Context) ([]RawDocument, error) {
	var docs []RawDocument
	if err := c.getJSON(ctx, indicatorsList+"?filter=saved", &docs); err != nil {
		return nil, fmt.Errorf("%w: list private indicators: %v", domain.ErrMetadataHTTP, err)
	}
	return docs, nil
}

// ListLayouts lists the authenticated user's saved chart layouts.
func (c *Client) ListLayouts(ctx context.Context) ([]RawDocument, error) {
	var docs []RawDocument
	if err := c.getJSON(ctx, layoutsBase, &docs); err != nil {
		return nil, fmt.Errorf("%w: list layouts: %v", domain.ErrMetadataHTTP, err)
	}
	return docs, nil
}

// GetChartToken retrieves a chart token for a layout, needed to fetch its
// sources.
func (c *Client) GetChartToken(ctx context.Context, layoutID, userID string) (string, error) {
	reqURL := fmt.Sprintf("%s?image_url=%s&user_id=%s", chartTokenURL, url.QueryEscape(layoutID), url.QueryEscape(userID))
	var doc RawDocument
	if err := c.getJSON(ctx, reqURL, &doc); err != nil {
		return "", fmt.Errorf("%w: chart token for %s: %v", domain.ErrMetadataHTTP, layoutID, err)
	}
	token, _ := doc["token"].(string)
	return token, nil
}

// GetLayoutSources fetches all indicator/drawing sources attached to a
// layout.
func (c *Client) GetLayoutSources(ctx context.Context, layoutID, chartToken string) (RawDocument, error) {
	reqURL := fmt.Sprintf("%s/%s/sources?chart_id=_shared&jwt=%s", layoutSources, url.PathEscape(layoutID), url.QueryEscape(chartToken))
	var doc RawDocument
	if err := c.getJSON(ctx, reqURL, &doc); err != nil {
		return nil, fmt.Errorf("%w: layout sources for %s: %v", domain.ErrMetadataHTTP, layoutID, err)
	}
	return doc, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
