// Package middleware provides HTTP middleware for the reference collector.
package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows cross-origin batches from the pages being measured.
// allowOrigins is a comma-separated list; "*" allows any origin.
func CORSMiddleware(allowOrigins string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
		},
		ExposeHeaders: []string{
			"Content-Type",
		},
	}

	origins := splitOrigins(allowOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		// Beacons are sent with credentials; only safe with explicit origins.
		config.AllowCredentials = true
	}

	return cors.New(config)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
