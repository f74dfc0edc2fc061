package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets a browser front-end on another origin call the API with the
// session cookie. With no allowed origins configured every Origin is
// reflected back; otherwise only the listed ones are.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return len(allowed) == 0 || allowed[origin]
		},
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
