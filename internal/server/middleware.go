package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
)

const HeaderActorID = "X-Actor-ID"

// ActorContext attributes the request to the user named by X-Actor-ID.
// Requests without the header run as the system actor.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actorID != "" {
			ctx := obsctx.WithActor(c.Request.Context(), obsctx.ActorTypeUser, actorID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// CORS allows any origin outside production. Production only answers the
// configured origins and sends no CORS headers when none are configured.
func CORS(production bool, allowedOrigins string) gin.HandlerFunc {
	origins := splitAndTrim(allowedOrigins)
	if production && len(origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(corsConfig(production, origins))
}

func corsConfig(production bool, origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if production {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", HeaderActorID, "X-Request-Id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Request-Id")
	return cfg
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
