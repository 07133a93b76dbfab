package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks JSON over HTTP to the external asset registry / settlement
// service. It implements both domain.AssetRegistry and
// domain.FundsTransferor; the registry service is the engine's single
// collaborator for ownership facts, custody moves and value transfers.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type identityResponse struct {
	Identity string `json:"identity"`
}

type transferCustodyRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	AssetID string `json:"asset_id"`
	Safe    bool   `json:"safe"`
}

type transferFundsRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (c *Client) OwnerOf(ctx context.Context, assetID string) (string, error) {
	return c.identity(ctx, assetID, "owner")
}

func (c *Client) ApprovedOperator(ctx context.Context, assetID string) (string, error) {
	return c.identity(ctx, assetID, "operator")
}

func (c *Client) ArtistOf(ctx context.Context, assetID string) (string, error) {
	return c.identity(ctx, assetID, "artist")
}

func (c *Client) CreatorOf(ctx context.Context, assetID string) (string, error) {
	return c.identity(ctx, assetID, "creator")
}

func (c *Client) TransferCustody(ctx context.Context, from, to, assetID string) error {
	return c.post(ctx, "/api/v1/custody/transfer", transferCustodyRequest{
		From: from, To: to, AssetID: assetID,
	})
}

func (c *Client) TransferCustodySafe(ctx context.Context, from, to, assetID string) error {
	return c.post(ctx, "/api/v1/custody/transfer", transferCustodyRequest{
		From: from, To: to, AssetID: assetID, Safe: true,
	})
}

func (c *Client) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return c.post(ctx, "/api/v1/funds/transfer", transferFundsRequest{
		From: from, To: to, Amount: amount,
	})
}

func (c *Client) identity(ctx context.Context, assetID, role string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/assets/%s/%s", c.baseURL, url.PathEscape(assetID), role)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry %s lookup: %w", role, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry %s lookup for asset %s: %s", role, assetID, readError(resp.Body, resp.StatusCode))
	}

	var body identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("registry %s lookup: decode response: %w", role, err)
	}
	return body.Identity, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("registry call %s: %s", path, readError(resp.Body, resp.StatusCode))
	}
	return nil
}

func readError(body io.Reader, status int) string {
	data, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(data) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, data)
}
