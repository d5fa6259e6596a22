package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"officedj/pkg/fuzzy"
)

// DefaultMirrors are the invidious instances tried in order. Instances come
// and go; the sequence plus the per-attempt timeout bounds worst-case lookup
// latency at len(mirrors) * timeout.
var DefaultMirrors = []string{
	"https://inv.nadeko.net",
	"https://invidious.nerdvpn.de",
	"https://yewtu.be",
	"https://invidious.f5.si",
}

// ErrNoVideo reports an exhausted mirror sequence with no usable result.
var ErrNoVideo = fmt.Errorf("no fallback video found")

// YouTubeLookup finds a playable fallback video for a track by searching
// invidious mirrors. Results and exhausted lookups are memoized.
type YouTubeLookup struct {
	mirrors    []string
	timeout    time.Duration
	httpClient *http.Client
	cache      *LookupCache
	normalizer *fuzzy.Normalizer
	logger     *zap.Logger
}

func NewYouTubeLookup(mirrors []string, timeout time.Duration, cache *LookupCache, logger *zap.Logger) *YouTubeLookup {
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}
	return &YouTubeLookup{
		mirrors:    mirrors,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		normalizer: fuzzy.NewNormalizer(),
		logger:     logger,
	}
}

type invidiousResult struct {
	Type          string `json:"type"`
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	LengthSeconds int    `json:"lengthSeconds"`
}

// Find returns the video id for "artist title", or ErrNoVideo once every
// mirror has been tried. Lookups hit the cache first.
func (y *YouTubeLookup) Find(ctx context.Context, artist, title string) (string, error) {
	key := y.normalizer.NormalizeQuery(artist + " " + title)
	if videoID, found := y.cache.Get(key); found {
		if videoID == "" {
			return "", ErrNoVideo
		}
		return videoID, nil
	}

	query := artist + " " + title
	for _, mirror := range y.mirrors {
		videoID, err := y.searchMirror(ctx, mirror, query)
		if err != nil {
			y.logger.Debug("Mirror lookup failed",
				zap.String("mirror", mirror), zap.Error(err))
			continue
		}
		if videoID != "" {
			y.cache.PutHit(key, videoID)
			return videoID, nil
		}
	}

	y.cache.PutMiss(key)
	return "", ErrNoVideo
}

func (y *YouTubeLookup) searchMirror(ctx context.Context, mirror, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	reqURL := mirror + "/api/v1/search?" + url.Values{
		"q":    {query},
		"type": {"video"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mirror status %d", resp.StatusCode)
	}

	var results []invidiousResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", err
	}
	for _, r := range results {
		if r.Type == "video" && r.VideoID != "" {
			return r.VideoID, nil
		}
	}
	return "", nil
}
