package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forgearmory/armory/pkg/types"
)

// RegisterBackend registers a new backend with the gateway.
func (c *Client) RegisterBackend(input *types.CreateBackendInput) (*types.Backend, error) {
	u, err := c.constructAPIEndpoint("/backends")
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backend input: %w", err)
	}

	req, err := c.newRequest(http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseErrorResponse(resp)
	}

	var backend types.Backend
	if err := json.NewDecoder(resp.Body).Decode(&backend); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &backend, nil
}

// ListBackends returns all registered backends.
func (c *Client) ListBackends() ([]*types.Backend, error) {
	u, err := c.constructAPIEndpoint("/backends")
	if err != nil {
		return nil, err
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

	var backends []*types.Backend
	if err := json.NewDecoder(resp.Body).Decode(&backends); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return backends, nil
}

// GetBackend fetches a single backend by name.
func (c *Client) GetBackend(name string) (*types.Backend, error) {
	u, err := c.constructAPIEndpoint("/backends/" + name)
	if err != nil {
		return nil, err
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

	var backend types.Backend
	if err := json.NewDecoder(resp.Body).Decode(&backend); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &backend, nil
}

// UpdateBackend applies a partial update to a backend.
func (c *Client) UpdateBackend(name string, input *types.UpdateBackendInput) (*types.Backend, error) {
	u, err := c.constructAPIEndpoint("/backends/" + name)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backend input: %w", err)
	}

	req, err := c.newRequest(http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var backend types.Backend
	if err := json.NewDecoder(resp.Body).Decode(&backend); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &backend, nil
}

// DeregisterBackend removes a backend and all of its tools.
func (c *Client) DeregisterBackend(name string) error {
	u, err := c.constructAPIEndpoint("/backends/" + name)
	if err != nil {
		return err
	}

	req, err := c.newRequest(http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// EnableBackend enables a backend, connecting it and exposing its tools.
func (c *Client) EnableBackend(name string) (*types.Backend, error) {
	return c.postBackendAction(name, "enable")
}

// DisableBackend disables a backend, disconnecting it and hiding its tools.
func (c *Client) DisableBackend(name string) (*types.Backend, error) {
	return c.postBackendAction(name, "disable")
}

func (c *Client) postBackendAction(name, action string) (*types.Backend, error) {
	u, err := c.constructAPIEndpoint("/backends/" + name + "/" + action)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(http.MethodPost, u, nil)
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

	var backend types.Backend
	if err := json.NewDecoder(resp.Body).Decode(&backend); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &backend, nil
}

// RefreshBackend re-fetches a backend's tool list from the live server.
func (c *Client) RefreshBackend(name string) (*types.RefreshResult, error) {
	u, err := c.constructAPIEndpoint("/backends/" + name + "/refresh")
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(http.MethodPost, u, nil)
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

	var result types.RefreshResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
