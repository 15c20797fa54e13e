package metadataclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const userDataURL = "https://www.tradingview.com/"

var (
	authTokenPattern = regexp.MustCompile(`"auth_token":"(.*?)"`)
	userIDPattern    = regexp.MustCompile(`"id":([0-9]{1,10}),`)
	usernamePattern  = regexp.MustCompile(`"username":"(.*?)"`)
)

// GetUserData scrapes auth_token, id and username out of the TradingView
// homepage HTML, relying on the caller's http.Client to already carry
// session cookies. All three fields are optional — absence is not an
// error, mirroring the original's tolerant regex extraction.
func (c *Client) GetUserData(ctx context.Context) (domain.UserData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userDataURL, nil)
	if err != nil {
		return domain.UserData{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("%w: user data: %v", domain.ErrMetadataHTTP, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("%w: reading user data response: %v", domain.ErrMetadataHTTP, err)
	}

	var data domain.UserData
	if m := authTokenPattern.FindSubmatch(body); m != nil {
		data.AuthToken = string(m[1])
	}
	if m := userIDPattern.FindSubmatch(body); m != nil {
		data.UserID = string(m[1])
	}
	if m := usernamePattern.FindSubmatch(body); m != nil {
		data.Username = string(m[1])
	}
	return data, nil
}
