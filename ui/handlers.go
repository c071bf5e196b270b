package ui

import (
	"bytes"
	stderrors "errors"
	"log"
	"mime"
	"net/http"
	"strings"

	"exoai/domain/prediction"
	"exoai/internal/analysis"
	"exoai/internal/api"
	"exoai/internal/errors"
	"exoai/internal/metricsview"
	"exoai/internal/upload"
	"exoai/ui/middleware"

	"github.com/gin-gonic/gin"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

const msgUploadRunning = "An analysis is already running for this session"

func (s *Server) newUploadPage() uploadPage {
	return uploadPage{
		basePage:      basePage{Title: "Upload", Active: pageUpload},
		Models:        upload.Models,
		SelectedModel: upload.Models[0].ID,
		Notes:         s.uploadNotes,
		MaxMB:         s.maxUploadBytes >> 20,
	}
}

// handleUploadPage renders the upload form
func (s *Server) handleUploadPage(c *gin.Context) {
	s.metrics.ObservePage(pageUpload)

	page := s.newUploadPage()
	if c.Query("notice") == noticeNoAnalysis {
		page.Notice = "No analysis yet. Upload a CSV file to get started."
	}
	s.renderTemplate(c, http.StatusOK, "upload.html", page)
}

// handleUpload validates the file, runs the prediction and redirects to the analysis
func (s *Server) handleUpload(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	ctrl := upload.NewController(s.predictor, s.store, sessionID).
		WithMaxBytes(s.maxUploadBytes).
		WithRecorder(s.metrics)

	// one analysis per session at a time
	if _, running := s.inflight.LoadOrStore(sessionID, struct{}{}); running {
		page := s.newUploadPage()
		page.Error = msgUploadRunning
		s.renderTemplate(c, http.StatusConflict, "upload.html", page)
		return
	}
	defer s.inflight.Delete(sessionID)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+formOverhead)

	page := s.newUploadPage()
	fail := func(err error) {
		log.Printf("[Upload] Session %s: %v", sessionID, err)
		page.Error = errors.Message(err)
		page.SelectedModel = ctrl.Model()
		s.renderTemplate(c, api.StatusFor(err), "upload.html", page)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large"):
			fail(upload.TooLargeError())
		case stderrors.Is(err, http.ErrMissingFile):
			// Submit without a selection reports the missing file
			_, submitErr := ctrl.Submit(c.Request.Context())
			fail(submitErr)
		default:
			fail(errors.Validation("Could not read the uploaded form"))
		}
		return
	}

	if model := c.PostForm("model"); model != "" {
		if err := ctrl.SelectModel(model); err != nil {
			fail(err)
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		fail(errors.Wrap(err, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	if err := ctrl.SelectFile(upload.FileInfo{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}); err != nil {
		page.FileName = header.Filename
		fail(err)
		return
	}

	next, err := ctrl.Submit(c.Request.Context())
	if err != nil {
		page.FileName = header.Filename
		fail(err)
		return
	}

	s.forgetProjector(sessionID)
	log.Printf("[Upload] Session %s analyzed %s with model %s", sessionID, header.Filename, ctrl.Model())
	c.Redirect(http.StatusSeeOther, next)
}

// loadAnalysis returns the session's analysis or redirects to the upload page
func (s *Server) loadAnalysis(c *gin.Context) (*analysis.Controller, bool) {
	sessionID := middleware.SessionID(c)
	ctrl, err := analysis.Load(c.Request.Context(), s.store, sessionID, s.projectorFor(sessionID))
	if err == nil {
		return ctrl, true
	}
	if errors.HasCode(err, errors.CodeNoAnalysis) {
		c.Redirect(http.StatusSeeOther, "/?notice="+noticeNoAnalysis)
		return nil, false
	}
	log.Printf("[Analysis] Failed to load session %s: %v", sessionID, err)
	s.renderError(c, http.StatusInternalServerError, "Could not load the analysis")
	return nil, false
}

// handleAnalysis renders the filtered, paginated result table with its sidebar
func (s *Server) handleAnalysis(c *gin.Context) {
	ctrl, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	s.metrics.ObservePage(pageAnalysis)

	ctrl.Restore(analysis.ViewStateFromQuery(c.Query("filter"), c.Query("q"), c.Query("rows"), c.Query("page")))
	view := ctrl.View()

	confidence, err := ctrl.Confidence()
	if err != nil {
		log.Printf("[Analysis] Confidence summary failed: %v", err)
	}

	s.renderTemplate(c, http.StatusOK, "analysis.html", buildAnalysisPage(ctrl, view, confidence))
}

// handleExportCSV downloads every result, ignoring filter and search
func (s *Server) handleExportCSV(c *gin.Context) {
	ctrl, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := ctrl.ExportCSV(&buf); err != nil {
		log.Printf("[Export] CSV export failed: %v", err)
		s.renderError(c, http.StatusInternalServerError, errors.Message(err))
		return
	}
	s.metrics.ObserveExport("csv")
	sendAttachment(c, ctrl.ExportFileName(), analysis.CSVContentType, buf.Bytes())
}

// handleExportXLSX downloads every result as a workbook
func (s *Server) handleExportXLSX(c *gin.Context) {
	ctrl, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := ctrl.ExportXLSX(&buf); err != nil {
		log.Printf("[Export] XLSX export failed: %v", err)
		s.renderError(c, http.StatusInternalServerError, errors.Message(err))
		return
	}
	s.metrics.ObserveExport("xlsx")
	sendAttachment(c, ctrl.ExportXLSXFileName(), analysis.XLSXContentType, buf.Bytes())
}

func sendAttachment(c *gin.Context, fileName, contentType string, body []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	c.Data(http.StatusOK, contentType, body)
}

// handleMetrics fetches the model metadata once and renders one card per model
func (s *Server) handleMetrics(c *gin.Context) {
	s.metrics.ObservePage(pageMetrics)

	ctrl := metricsview.NewController(s.predictor)
	page := metricsPage{
		basePage: basePage{Title: "Model Metrics", Active: pageMetrics},
		Notes:    s.metricsNotes,
	}

	status := http.StatusOK
	if err := ctrl.Load(c.Request.Context()); err != nil {
		log.Printf("[Metrics] %v", err)
		page.Error = ctrl.ErrorMessage()
		status = api.StatusFor(err)
	} else {
		page.Cards = ctrl.Cards(prediction.DefaultTopFeatures)
	}
	s.renderTemplate(c, status, "metrics.html", page)
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	s.renderTemplate(c, status, "error.html", errorPage{
		basePage: basePage{Title: "Error"},
		Message:  message,
	})
}
