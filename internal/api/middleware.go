package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500
)

// NewRouter returns a gin engine with recovery, request logging and the
// multipart memory limit used for uploads.
func NewRouter() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery())
	r.Use(ZerologLogger())
	return r
}

// ZerologLogger is a Gin middleware that logs requests using zerolog.
// Scrapes of /metrics and polls of running batches are logged at debug level.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()

		var evt *zerolog.Event
		switch {
		case status >= statusErrorThreshold:
			evt = log.Error()
		case status >= statusWarnThreshold:
			evt = log.Warn()
		case method == http.MethodGet && (path == "/metrics" || c.FullPath() == "/api/v1/batches/:id"):
			evt = log.Debug()
		default:
			evt = log.Info()
		}

		if raw != "" {
			path = path + "?" + raw
		}
		if id := c.Param("id"); id != "" {
			evt = evt.Str("batch_id", id)
		}

		evt.
			Int("status", status).
			Str("method", method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("http request completed")
	}
}
