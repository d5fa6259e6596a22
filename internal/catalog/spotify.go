// Package catalog proxies track search and the fallback video lookup so
// browser clients never hold provider credentials.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"officedj/internal/core"
	"officedj/pkg/fuzzy"
)

// MaxSearchResults limits track search results for user queries.
const MaxSearchResults = 10

// SpotifySearcher searches the Spotify catalog with app-level client
// credentials; no user token is involved.
type SpotifySearcher struct {
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
	logger     *zap.Logger
}

func NewSpotifySearcher(ctx context.Context, cfg core.SpotifyConfig, logger *zap.Logger) *SpotifySearcher {
	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := conf.Client(ctx)

	return &SpotifySearcher{
		client:     spotify.New(httpClient, spotify.WithRetry(true)),
		normalizer: fuzzy.NewNormalizer(),
		logger:     logger,
	}
}

// Search returns up to MaxSearchResults tracks ranked by similarity between
// the query and the track's normalized "artist title" string. Spotify's own
// ordering is kept as the tie-breaker.
func (s *SpotifySearcher) Search(ctx context.Context, query string) ([]core.Track, error) {
	results, err := s.client.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(MaxSearchResults))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return []core.Track{}, nil
	}

	normalizedQuery := s.normalizer.NormalizeQuery(query)

	type scored struct {
		track core.Track
		score float64
		index int
	}
	var ranked []scored
	for i := range results.Tracks.Tracks {
		t := &results.Tracks.Tracks[i]
		track := convertTrack(t)
		key := s.normalizer.NormalizeQuery(track.Artists + " " + track.Name)
		ranked = append(ranked, scored{
			track: track,
			score: s.normalizer.Similarity(normalizedQuery, key),
			index: i,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	tracks := make([]core.Track, 0, len(ranked))
	for _, r := range ranked {
		tracks = append(tracks, r.track)
	}
	return tracks, nil
}

func convertTrack(t *spotify.FullTrack) core.Track {
	artists := ""
	for i, a := range t.Artists {
		if i > 0 {
			artists += ", "
		}
		artists += a.Name
	}

	cover := ""
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	return core.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Artists:    artists,
		AlbumCover: cover,
		DurationMs: int(t.Duration),
	}
}
