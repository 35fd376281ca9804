// YouTube Data API v3 search
//
// Searches the music category and resolves each hit's duration through the videos endpoint.
// Without an API key, a deterministic mock catalog is returned instead.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

const (
	defaultYTBaseURL string = "https://www.googleapis.com/youtube/v3"
	searchResults    int    = 25
)

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// YouTubeImage represents a thumbnail in Data API responses.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// YouTubeSnippet is the snippet part of a search result.
type YouTubeSnippet struct {
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	ChannelTitle string                  `json:"channelTitle,omitempty"`
	PublishedAt  string                  `json:"publishedAt,omitempty"`
	Thumbnails   map[string]YouTubeImage `json:"thumbnails"`
}

// YouTubeSearchItem is a single item of a search.list response.
type YouTubeSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet YouTubeSnippet `json:"snippet"`
}

// YouTubeSearchResponse is the body of a search.list response.
type YouTubeSearchResponse struct {
	Items []YouTubeSearchItem `json:"items"`
}

type youtubeVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// YouTubeService searches YouTube for songs.
type YouTubeService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeService creates a YouTube search client. An empty apiKey makes [YouTubeService.Search] return mock results.
func NewYouTubeService(cfg shared.YouTubeConfig, client *http.Client) *YouTubeService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &YouTubeService{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// Configured reports whether a Data API key is set.
func (y *YouTubeService) Configured() bool {
	return y.apiKey != ""
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	params.Set("key", y.apiKey)
	apiURL := y.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: youtube API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%w: youtube API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search returns up to 25 music videos matching query.
//
// Durations come from a single videos.list call. A failed duration lookup leaves "Unknown" rather than failing the search.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]models.Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}
	if !y.Configured() {
		return MockVideos(query), nil
	}

	params := url.Values{
		"part":            {"snippet"},
		"q":               {query},
		"type":            {"video"},
		"videoCategoryId": {"10"},
		"maxResults":      {strconv.Itoa(searchResults)},
		"order":           {"relevance"},
		"regionCode":      {"US"},
		"videoDuration":   {"medium"},
	}

	var search YouTubeSearchResponse
	if err := y.doRequest(ctx, "/search", params, &search); err != nil {
		return nil, err
	}
	if len(search.Items) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", shared.ErrSongNotFound, query)
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		ids = append(ids, item.ID.VideoID)
	}
	durations := y.durations(ctx, ids)

	videos := make([]models.Video, 0, len(search.Items))
	for _, item := range search.Items {
		id := item.ID.VideoID
		d, ok := durations[id]
		if !ok {
			d = "Unknown"
		}
		videos = append(videos, models.Video{
			VideoID:      id,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    thumbnail(item.Snippet.Thumbnails),
			URL:          WatchURL(id),
			Duration:     d,
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}
	return videos, nil
}

func (y *YouTubeService) durations(ctx context.Context, ids []string) map[string]string {
	out := map[string]string{}
	params := url.Values{"part": {"contentDetails"}, "id": {strings.Join(ids, ",")}}

	var resp youtubeVideosResponse
	if err := y.doRequest(ctx, "/videos", params, &resp); err != nil {
		return out
	}
	for _, item := range resp.Items {
		out[item.ID] = ParseISODuration(item.ContentDetails.Duration)
	}
	return out
}

func thumbnail(thumbs map[string]YouTubeImage) string {
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := thumbs[size]; ok {
			return t.URL
		}
	}
	return ""
}

// WatchURL returns the watch page URL of a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseISODuration renders an ISO 8601 duration such as PT4M13S as m:ss, or h:mm:ss when an hour part is present.
func ParseISODuration(s string) string {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "PT" {
		return "Unknown"
	}

	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, sec)
	}
	return fmt.Sprintf("%d:%02d", mins, sec)
}

// MockSearch returns the single placeholder item served by /api/youtube/search.
func MockSearch(query string) YouTubeSearchResponse {
	var item YouTubeSearchItem
	item.ID.VideoID = "mock_video_id"
	item.Snippet = YouTubeSnippet{
		Title:       "Guitar lesson for: " + query,
		Description: "Learn to play this song on guitar",
		Thumbnails:  map[string]YouTubeImage{"default": {URL: "https://via.placeholder.com/120x90"}},
	}
	return YouTubeSearchResponse{Items: []YouTubeSearchItem{item}}
}

var mockCatalog = []models.Video{
	{VideoID: "3T1c7GkzRQQ", Title: "Wonderwall - Oasis", ChannelTitle: "Oasis Official", Duration: "4:18", PublishedAt: "2008-07-16T14:30:00Z"},
	{VideoID: "dQw4w9WgXcQ", Title: "Hotel California - Eagles", ChannelTitle: "Eagles Official", Duration: "6:30", PublishedAt: "2008-10-25T07:00:00Z"},
	{VideoID: "QDYfEBY9NM4", Title: "Let It Be - The Beatles", ChannelTitle: "The Beatles Official", Duration: "3:50", PublishedAt: "2010-01-14T16:30:00Z"},
	{VideoID: "fJ9rUzIMcZQ", Title: "Bohemian Rhapsody - Queen", ChannelTitle: "Queen Official", Duration: "5:55", PublishedAt: "2008-08-01T10:00:00Z"},
	{VideoID: "1w7OgIMMRc4", Title: "Sweet Child O Mine - Guns N Roses", ChannelTitle: "Guns N Roses Official", Duration: "5:03", PublishedAt: "2009-10-25T16:00:00Z"},
	{VideoID: "rY0WxgSXdEE", Title: "Stairway to Heaven - Led Zeppelin", ChannelTitle: "Led Zeppelin Official", Duration: "8:02", PublishedAt: "2007-12-07T12:00:00Z"},
}

var (
	mockGenres  = []string{"Rock", "Pop", "Jazz", "Blues", "Country", "Folk", "Alternative", "Indie"}
	mockArtists = []string{"The Beatles", "Led Zeppelin", "Pink Floyd", "Queen", "Eagles", "Fleetwood Mac", "The Rolling Stones", "AC/DC", "U2", "Coldplay"}
)

// MockVideos returns 25 deterministic results for query: catalog songs sharing a word with the query first,
// then the rest of the catalog, then generated filler.
func MockVideos(query string) []models.Video {
	words := strings.Fields(strings.ToLower(query))
	matches := func(title string) bool {
		title = strings.ToLower(title)
		for _, w := range words {
			if strings.Contains(title, w) {
				return true
			}
		}
		return false
	}

	out := make([]models.Video, 0, searchResults)
	var rest []models.Video
	for _, v := range mockCatalog {
		v.Thumbnail = "https://i.ytimg.com/vi/" + v.VideoID + "/mqdefault.jpg"
		v.URL = WatchURL(v.VideoID)
		if matches(v.Title) {
			out = append(out, v)
		} else {
			rest = append(rest, v)
		}
	}
	out = append(out, rest...)

	for i := len(out); i < searchResults; i++ {
		id := fmt.Sprintf("english_%03d", i)
		artist := mockArtists[i%len(mockArtists)]
		out = append(out, models.Video{
			VideoID:      id,
			Title:        fmt.Sprintf("%s %s - %s", query, mockGenres[i%len(mockGenres)], artist),
			ChannelTitle: artist + " Official",
			Thumbnail:    fmt.Sprintf("https://picsum.photos/320/180?random=%d", i+200),
			URL:          WatchURL(id),
			Duration:     fmt.Sprintf("%d:%02d", 3+i%4, 15+(i*7)%45),
			PublishedAt:  fmt.Sprintf("202%d-0%d-%02dT%02d:00:00Z", i%4, 1+i%9, 10+i%20, 10+i%12),
		})
	}
	return out
}
