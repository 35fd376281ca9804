// Package server provides the ChordyPi HTTP API: routing, middleware and the handlers behind the web client.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses gorilla/mux internally for method matching and path variables.
//
// # Handler Interface
//
// Handlers implement the [Handler] interface and return their own [Route] list, so each handler
// encapsulates its route definitions:
//
//   - [HealthHandler]: liveness for the API and the Pi integration
//   - [MockHandler]: demo authentication, payments, YouTube search and featured songs
//   - [PiHandler]: the Pi payment lifecycle (approve, complete, verify, webhook) and per-user premium state
//   - [LibraryHandler]: the caller's saved, favorite and recent songs
//   - [SearchHandler]: song search backed by the YouTube Data API
//   - [AnalysisHandler]: WAV uploads, chord database lookups, MIDI export and daily usage
//   - [StaticHandler]: the built web client, legal documents and the single page app fallback
//
// # Identity
//
// [Identity] resolves the calling Pi user from a bearer token (verified against the Pi platform) or, in
// sandbox mode only, the X-Pi-User header, and stores it in the request context. Handlers that need a
// user answer 401 without one.
//
// # Serving
//
// [App] wires repositories and services from the configuration. [App.Serve] runs until its context is
// cancelled, over TLS with a configured key pair or a generated self-signed certificate, and optionally a
// plain listener that redirects to HTTPS.
package server
