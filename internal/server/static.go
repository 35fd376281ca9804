package server

import (
	"net/http"
	"path"
	"strings"

	"github.com/charmbracelet/log"
)

var assetExtensions = []string{".js", ".css", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".woff", ".woff2", ".ttf", ".eot"}

var legalDocuments = []string{"terms-of-service.html", "privacy-policy.html"}

// logoutPage clears the client-side Pi session and sends the browser back to sign in.
const logoutPage = `<!DOCTYPE html>
<html>
<head>
  <title>Logging Out...</title>
  <style>
    body { margin: 0; font-family: Arial, sans-serif; background: linear-gradient(135deg, #6c5ce7, #a855f7);
      height: 100vh; display: flex; justify-content: center; align-items: center; color: white; }
    .logout-container { text-align: center; background: rgba(255,255,255,0.1); padding: 40px; border-radius: 15px; }
  </style>
</head>
<body>
  <div class="logout-container">
    <h1>Signing Out...</h1>
    <p>Clearing authentication data...</p>
    <p>Redirecting to sign in page...</p>
  </div>
  <script>
    ['token', 'user', 'piNetworkUser', 'piNetworkAuth', 'users'].forEach(function (k) { localStorage.removeItem(k); });
    setTimeout(function () { window.location.href = '/signin'; }, 1500);
  </script>
</body>
</html>
`

// StaticHandler serves the built web client, the legal documents and the single page app fallback.
//
// Register it last: its catch-all route shadows anything added after it.
type StaticHandler struct {
	web    http.FileSystem
	legal  http.FileSystem
	logger *log.Logger
}

// NewStaticHandler creates a [StaticHandler] rooted at the web build and legal directories.
func NewStaticHandler(webBuildPath, legalPath string, logger *log.Logger) *StaticHandler {
	return &StaticHandler{web: http.Dir(webBuildPath), legal: http.Dir(legalPath), logger: logger}
}

func (h *StaticHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/logout", Handler: h.Logout},
		{Method: http.MethodGet, Path: "/legal", Handler: h.Legal, Prefix: true},
		{Method: http.MethodGet, Path: "/", Handler: h.App, Prefix: true},
	}
}

// Logout handles GET /logout
func (h *StaticHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(logoutPage))
}

// Legal handles GET /legal/ and GET /legal/{document}
func (h *StaticHandler) Legal(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/legal"), "/")
	if name == "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "ChordyPi Legal Documents",
			"available_documents": map[string]string{
				"terms_of_service": "/legal/terms-of-service.html",
				"privacy_policy":   "/legal/privacy-policy.html",
			},
			"note": "These documents are accessible for Pi Network compliance",
		})
		return
	}

	if !serveFile(w, r, h.legal, name) {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":               "Legal document not found",
			"available_documents": legalDocuments,
		})
	}
}

// App serves build assets by path and index.html for every other client route.
func (h *StaticHandler) App(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

	if strings.HasPrefix(name, "api/") || name == "api" {
		respondError(w, http.StatusNotFound, "API endpoint not found")
		return
	}

	if isAsset(name) {
		if serveFile(w, r, h.web, name) {
			return
		}
		if !strings.Contains(name, "/") {
			h.index(w, r)
			return
		}
		respondError(w, http.StatusNotFound, "Asset not found")
		return
	}

	if name != "" && serveFile(w, r, h.web, name) {
		return
	}
	h.index(w, r)
}

func (h *StaticHandler) index(w http.ResponseWriter, r *http.Request) {
	if !serveFile(w, r, h.web, "index.html") {
		h.logger.Warn("web build missing index.html")
		respondError(w, http.StatusNotFound, "Frontend not available")
	}
}

func isAsset(name string) bool {
	for _, ext := range assetExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// serveFile writes the regular file name from root, reporting false when it does not exist.
func serveFile(w http.ResponseWriter, r *http.Request, root http.FileSystem, name string) bool {
	f, err := root.Open("/" + name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
