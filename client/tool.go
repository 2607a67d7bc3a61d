package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/forgearmory/armory/pkg/types"
)

// ListTools returns the tools in the aggregated catalog.
// If backend is non-empty, only that backend's tools are returned.
func (c *Client) ListTools(backend string) ([]*types.Tool, error) {
	u, err := c.constructAPIEndpoint("/tools")
	if err != nil {
		return nil, err
	}
	if backend != "" {
		u += "?backend=" + url.QueryEscape(backend)
	}

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var tools []*types.Tool
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return tools, nil
}

// ListToolCalls returns recorded tool invocations, newest first.
func (c *Client) ListToolCalls(backend, tool string, limit int) (*types.ToolCallList, error) {
	u, err := c.constructAPIEndpoint("/calls")
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if backend != "" {
		q.Set("backend", backend)
	}
	if tool != "" {
		q.Set("tool", tool)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var list types.ToolCallList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &list, nil
}

// CallStats returns aggregate statistics over recorded tool calls.
func (c *Client) CallStats(backend, tool string) (*types.CallStats, error) {
	u, err := c.constructAPIEndpoint("/stats")
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if backend != "" {
		q.Set("backend", backend)
	}
	if tool != "" {
		q.Set("tool", tool)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var stats types.CallStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &stats, nil
}
