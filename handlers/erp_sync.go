package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const defaultERPTimeout = 10 * time.Second

// ERPClient pushes product identifier codes to the external ERP. Calls are
// best effort with a bounded timeout: the primary data store is
// authoritative and a failed push must never roll back or block the
// operation that triggered it.
type ERPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewERPClientFromEnv() *ERPClient {
	timeout := defaultERPTimeout
	if s := os.Getenv("ERP_TIMEOUT_SECONDS"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &ERPClient{
		baseURL: os.Getenv("ERP_BASE_URL"),
		apiKey:  os.Getenv("ERP_API_KEY"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an ERP endpoint is set at all.
func (c *ERPClient) Configured() bool {
	return c.baseURL != ""
}

type erpCodesPayload struct {
	EanCode          string `json:"ean_code,omitempty"`
	ManufacturerCode string `json:"manufacturer_code,omitempty"`
}

// SyncProductCodes updates the EAN and manufacturer codes of the product
// identified by erpRef. At least one code must be present.
func (c *ERPClient) SyncProductCodes(ctx context.Context, erpRef, eanCode, manufacturerCode string) error {
	if !c.Configured() {
		return errors.New("ERP endpoint is not configured")
	}
	if erpRef == "" {
		return errors.New("missing ERP reference")
	}
	if eanCode == "" && manufacturerCode == "" {
		return errors.New("no codes to sync")
	}

	body, err := json.Marshal(erpCodesPayload{EanCode: eanCode, ManufacturerCode: manufacturerCode})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/products/%s/codes", c.baseURL, erpRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ERP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ERP returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
