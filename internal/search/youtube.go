package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/net/html"

	"github.com/syncwatch/server/internal/domain"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
)

// YouTube resolves a known video id into a titled reference. The oembed
// endpoint is tried first; videos with embedding disabled still resolve
// through the watch page markup.
type YouTube struct {
	client    *http.Client
	oembedURL string
	pageURL   string
}

type YouTubeConfig struct {
	Client *http.Client
	// OembedURL and PageURL override the real endpoints in tests.
	OembedURL string
	PageURL   string
}

func NewYouTube(cfg YouTubeConfig) *YouTube {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.OembedURL == "" {
		cfg.OembedURL = "https://www.youtube.com/oembed"
	}
	if cfg.PageURL == "" {
		cfg.PageURL = "https://youtu.be"
	}

	return &YouTube{
		client:    cfg.Client,
		oembedURL: cfg.OembedURL,
		pageURL:   cfg.PageURL,
	}
}

func (y *YouTube) Resolve(ctx context.Context, videoID string) (*domain.VideoRef, error) {
	ref, err := y.fromOembed(ctx, videoID)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with embed: %w", err)
		}

		ref, err = y.fromPage(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return ref, nil
}

func (y *YouTube) fromOembed(ctx context.Context, videoID string) (*domain.VideoRef, error) {
	url := fmt.Sprintf("%s?url=https://www.youtube.com/watch?v=%s", y.oembedURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, ErrVideoNotFound
		case http.StatusUnauthorized:
			return nil, ErrVideoNotEmbeddable
		default:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var result struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return &domain.VideoRef{
		ID:           videoID,
		Title:        result.Title,
		ThumbnailURL: result.ThumbnailURL,
	}, nil
}

func (y *YouTube) fromPage(ctx context.Context, videoID string) (*domain.VideoRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.pageURL+"/"+videoID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	title := pageTitle(doc)
	if title == "" {
		return nil, ErrVideoNotFound
	}

	return &domain.VideoRef{
		ID:           videoID,
		Title:        title,
		ThumbnailURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
	}, nil
}

func pageTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := pageTitle(c); title != "" {
			return title
		}
	}

	return ""
}
