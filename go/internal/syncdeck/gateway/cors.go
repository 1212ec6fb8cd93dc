package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware allows the listed origins to call the HTTP API. WebSocket
// upgrades check origins separately through ConnectionConfig.CheckOrigin.
func CORSMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
	return c.Handler(next)
}
