package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed assets
var assets embed.FS

// DefaultAvatarPath is where HandleDefaultAvatar is mounted.
const DefaultAvatarPath = "/images/default-avatar.png"

// PlaygroundHandler serves the in-browser GraphQL IDE and the static
// default avatar every new account points at.
type PlaygroundHandler struct {
	templates *template.Template
	endpoint  string
	logger    *slog.Logger
}

// NewPlaygroundHandler parses the embedded page. endpoint is the GraphQL
// path the page posts to.
func NewPlaygroundHandler(endpoint string, logger *slog.Logger) (*PlaygroundHandler, error) {
	tmpl, err := template.ParseFS(assets, "assets/playground.html")
	if err != nil {
		return nil, err
	}
	return &PlaygroundHandler{
		templates: tmpl,
		endpoint:  endpoint,
		logger:    logger,
	}, nil
}

// HandlePlayground renders the IDE.
//
// HTTP: GET /api/v1/graphql
func (h *PlaygroundHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title":    "Codespaces GraphQL Playground",
		"Endpoint": h.endpoint,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.templates.ExecuteTemplate(w, "playground", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleDefaultAvatar serves the placeholder avatar.
//
// HTTP: GET /images/default-avatar.png
func (h *PlaygroundHandler) HandleDefaultAvatar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFileFS(w, r, assets, "assets/default-avatar.png")
}
