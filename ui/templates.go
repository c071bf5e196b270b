package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"strings"

	"exoai/domain/prediction"
	"exoai/internal/analysis"

	"github.com/gin-gonic/gin"
)

// templateFuncs are the helpers available to every page
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"fixed1": func(v float64) string {
			return fmt.Sprintf("%.1f", v)
		},
		"percent": func(p float64) string {
			return fmt.Sprintf("%.2f%%", p*100)
		},
		"percentOf": func(part, total int) string {
			if total == 0 {
				return "0%"
			}
			return fmt.Sprintf("%.0f%%", float64(part)/float64(total)*100)
		},
		"classLabel": func(c prediction.Class) string { return c.Label() },
		"classCSS": func(c prediction.Class) string {
			return strings.ReplaceAll(string(c), "_", "-")
		},
		"pie":   pieGradient,
		"upper": strings.ToUpper,
	}
}

// pieGradient turns the chart shares into a CSS conic-gradient
func pieGradient(shares []analysis.ChartShare) template.CSS {
	total := 0
	for _, s := range shares {
		total += s.Percentage
	}
	if total == 0 {
		return template.CSS("background: #1e293b")
	}

	var b strings.Builder
	b.WriteString("background: conic-gradient(")
	start := 0.0
	for i, s := range shares {
		// normalize so rounding drift never leaves a gap
		end := start + float64(s.Percentage)/float64(total)*100
		if i == len(shares)-1 {
			end = 100
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.2f%% %.2f%%", s.Color, start, end)
		start = end
	}
	b.WriteString(")")
	return template.CSS(b.String())
}

func parseTemplates() (*template.Template, error) {
	templates, err := template.New("").Funcs(templateFuncs()).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data interface{}) {
	// First render to a buffer to catch any errors before writing to response
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[Render] Template error for %s: %v", templateName, err)
		log.Printf("[Render] Template data type: %T", data)
		c.AbortWithStatusJSON(500, gin.H{"error": "Template rendering failed", "details": err.Error()})
		return
	}

	if !bytes.Contains(buf.Bytes(), []byte("</html>")) {
		log.Printf("[Render] WARNING: Rendered template %s appears truncated - missing </html> tag", templateName)
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(status)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("[Render] Error writing template response: %v", err)
	}
}
