package vin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// HTTPProvider decodes VINs against a vPIC-style JSON endpoint
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPProvider creates a remote decode provider. The per-call deadline
// comes from the caller's context; the client itself carries no timeout.
func NewHTTPProvider(baseURL string, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type vpicResponse struct {
	Results []struct {
		Variable string `json:"Variable"`
		Value    string `json:"Value"`
	} `json:"Results"`
}

// Decode calls the remote endpoint and maps its variable/value pairs
// onto a descriptor
func (p *HTTPProvider) Decode(ctx context.Context, vin string) (*Descriptor, error) {
	url := fmt.Sprintf("%s/vehicles/DecodeVin/%s?format=json", p.baseURL, vin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build VIN decode request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("VIN decode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VIN decode returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read VIN decode response: %w", err)
	}

	var wire vpicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode VIN response: %w", err)
	}

	desc := &Descriptor{VIN: vin}
	for _, r := range wire.Results {
		if r.Value == "" {
			continue
		}
		switch r.Variable {
		case "Make":
			desc.Make = r.Value
		case "Model":
			desc.Model = r.Value
		case "Manufacturer Name":
			desc.Manufacturer = r.Value
		case "Model Year":
			if y, err := strconv.Atoi(r.Value); err == nil {
				desc.Year = y
			}
		case "Plant Country":
			desc.Region = r.Value
		}
	}

	if desc.Make == "" {
		return nil, fmt.Errorf("remote decode returned no make for VIN %s", vin)
	}
	return desc, nil
}
