package ui

import (
	"io/fs"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
		s.router.GET("/static/css/exoai.css", func(c *gin.Context) {
			content, err := embeddedFiles.ReadFile("static/css/exoai.css")
			if err != nil {
				log.Printf("[Static] CSS file not found: %v", err)
				c.String(404, "CSS file not found")
				return
			}
			c.Data(200, "text/css; charset=utf-8", content)
		})
		return
	}
	log.Printf("[Static] Serving static files from embedded FS at /static")
	s.router.StaticFS("/static", http.FS(staticFS))
}
