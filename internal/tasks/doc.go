// Package tasks implements the audio extraction pipeline behind the extract command.
//
// The core abstraction is Pipeline, which downloads a video's audio with yt-dlp, converts
// and compresses it to a small mono WAV, and uploads it to a ChordyPi server for chord analysis.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
//
// AnalyzeBatch fans a list of URLs out over a bounded, rate limited worker pool and collects
// per-item results so one failing video does not abort the rest.
package tasks
