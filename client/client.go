// Package client provides an HTTP client for the Forge Armory management API.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/forgearmory/armory/pkg/types"
)

// Client talks to a Forge Armory server's management API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
// A nil httpClient selects http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// constructAPIEndpoint builds the full URL for a management API path.
func (c *Client) constructAPIEndpoint(path string) (string, error) {
	return url.JoinPath(c.baseURL, "/api/v0", path)
}

func (c *Client) newRequest(method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// parseErrorResponse converts a non-success API response into an error.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if errResp.Detail != "" {
		return fmt.Errorf("%s: %s", errResp.Error, errResp.Detail)
	}
	return fmt.Errorf("server returned %s (status %d)", errResp.Error, resp.StatusCode)
}
