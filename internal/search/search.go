package search

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/syncwatch/server/internal/domain"
)

// Provider is one searchable video catalog.
type Provider interface {
	Search(ctx context.Context, query string) ([]domain.VideoRef, error)
}

// Service turns a user query into video references. Lookups fail soft: a
// provider error degrades to the next provider and finally to an empty
// result, never to an error surfaced at the realtime layer.
type Service struct {
	yt        *YouTube
	providers []Provider
	logger    *slog.Logger
}

func NewService(yt *YouTube, providers []Provider, logger *slog.Logger) *Service {
	return &Service{
		yt:        yt,
		providers: providers,
		logger:    logger,
	}
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func (s *Service) Search(ctx context.Context, query string) []domain.VideoRef {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.VideoRef{}
	}

	// a pasted link or bare video id resolves directly instead of going
	// through a text search
	if id, ok := extractVideoID(query); ok {
		ref, err := s.yt.Resolve(ctx, id)
		if err == nil {
			return []domain.VideoRef{*ref}
		}
		s.logger.DebugContext(ctx, "failed to resolve video id", "video_id", id, "error", err)
	}

	for _, provider := range s.providers {
		refs, err := provider.Search(ctx, query)
		if err != nil {
			s.logger.DebugContext(ctx, "search provider failed", "query", query, "error", err)
			continue
		}
		if len(refs) > 0 {
			return refs
		}
	}

	return []domain.VideoRef{}
}

// extractVideoID recognizes bare 11-character ids, youtu.be short links and
// youtube.com watch links.
func extractVideoID(query string) (string, bool) {
	if videoIDRe.MatchString(query) {
		return query, true
	}

	u, err := url.Parse(query)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(u.Host, "www.")
	switch {
	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if videoIDRe.MatchString(id) {
			return id, true
		}
	case strings.HasSuffix(host, "youtube.com"):
		if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
			return id, true
		}
	}

	return "", false
}
