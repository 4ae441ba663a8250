// Package directory is the client for the external affected-user directory.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notification-engine/internal/models"
)

// Client resolves the users affected by an outage from the directory service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// ResolveAffectedUsers queries the directory by regions and services. The
// caller treats any error as zero recipients.
func (c *Client) ResolveAffectedUsers(ctx context.Context, regions, services []string) ([]models.Recipient, error) {
	q := url.Values{}
	if len(regions) > 0 {
		q.Set("regions", strings.Join(regions, ","))
	}
	if len(services) > 0 {
		q.Set("services", strings.Join(services, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/affected-users?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var recipients []models.Recipient
	if err := json.NewDecoder(resp.Body).Decode(&recipients); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return recipients, nil
}
