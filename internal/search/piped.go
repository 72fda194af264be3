package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/syncwatch/server/internal/domain"
)

const pipedMaxResults = 20

// Piped searches through a Piped API instance. Piped proxies the upstream
// video catalog without an API key, which keeps the server deployable
// without credentials.
type Piped struct {
	client  *http.Client
	baseURL string
}

func NewPiped(client *http.Client, baseURL string) *Piped {
	if client == nil {
		client = http.DefaultClient
	}

	return &Piped{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *Piped) Search(ctx context.Context, query string) ([]domain.VideoRef, error) {
	reqURL := fmt.Sprintf("%s/search?q=%s&filter=videos", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result struct {
		Items []struct {
			URL       string `json:"url"`
			Title     string `json:"title"`
			Thumbnail string `json:"thumbnail"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	refs := make([]domain.VideoRef, 0, len(result.Items))
	for _, item := range result.Items {
		id := videoIDFromWatchURL(item.URL)
		if id == "" {
			continue
		}

		refs = append(refs, domain.VideoRef{
			ID:           id,
			Title:        item.Title,
			ThumbnailURL: item.Thumbnail,
		})
		if len(refs) == pipedMaxResults {
			break
		}
	}

	return refs, nil
}

// videoIDFromWatchURL extracts the id from a relative watch url like
// "/watch?v=dQw4w9WgXcQ".
func videoIDFromWatchURL(watchURL string) string {
	u, err := url.Parse(watchURL)
	if err != nil {
		return ""
	}

	return u.Query().Get("v")
}
