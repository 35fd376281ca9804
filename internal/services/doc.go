// Package services implements clients for the external systems used by the ChordyPi server and CLI.
//
// # Pi Network
//
// [PiService] calls the Pi Platform API. Payment endpoints authenticate with the app's server API key
// ("Authorization: Key <key>"). [PiService.Me] verifies a user access token obtained by the Pi SDK,
// sending it as a bearer token through an [oauth2.StaticTokenSource].
//
// # YouTube
//
// [YouTubeService] searches the YouTube Data API v3 music category. Without an API key it serves
// deterministic results from [MockVideos], so the app works in development without credentials.
//
// # Extraction and Upload
//
// [Extractor] shells out to yt-dlp to read video metadata and download an audio-only stream into memory.
// [Uploader] posts WAV audio to a ChordyPi server's /analyze-audio-upload endpoint.
// Both report progress through a [ProgressFunc].
//
// # Raw API Access
//
// [APIService] makes raw JSON requests against a running ChordyPi server for the CLI's api command.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : API key not configured
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrPaymentNotFound] : Pi payment identifier unknown to the platform
//   - [shared.ErrAuthFailed] : access token rejected
//   - [shared.ErrServiceUnavailable] : yt-dlp missing or failed
package services
