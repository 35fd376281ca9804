package models

// FeaturedSong is a curated song shown on the landing page.
type FeaturedSong struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Difficulty string   `json:"difficulty"`
	Chords     []string `json:"chords"`
	Thumbnail  string   `json:"thumbnail"`
	YouTubeID  string   `json:"youtubeId"`
	Category   string   `json:"category"`
}

// Video is a YouTube search hit.
type Video struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnail    string `json:"thumbnail"`
	URL          string `json:"url"`
	Duration     string `json:"duration"`
	PublishedAt  string `json:"publishedAt"`
}
