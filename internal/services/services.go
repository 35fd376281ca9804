// package services defines clients for the external systems ChordyPi talks to
//
// Pi Network Platform API, YouTube Data API, yt-dlp and a ChordyPi analysis server
package services

// Service is implemented by every external API client.
type Service interface {
	// Name returns the name of the service (e.g., "Pi Network", "YouTube")
	Name() string

	// Configured reports whether the credentials the service needs are present.
	Configured() bool
}

var (
	_ Service = (*PiService)(nil)
	_ Service = (*YouTubeService)(nil)
)

// Status describes a configured service for health and config endpoints.
type Status struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// Statuses reports the configuration state of each service.
func Statuses(svcs ...Service) []Status {
	out := make([]Status, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, Status{Name: s.Name(), Configured: s.Configured()})
	}
	return out
}
