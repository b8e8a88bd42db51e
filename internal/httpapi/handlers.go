package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/reader"
	"github.com/nhle/mail-integration/internal/store"
)

type inboxResponse struct {
	Emails     []mail.Message `json:"emails"`
	NextCursor *string        `json:"next_cursor"`
}

type downloadResponse struct {
	Size          int    `json:"size"`
	ContentBase64 string `json:"content_base64"`
}

// newReader builds a reader bound to the request's credentials.
func (s *Server) newReader(req authRequest) (*reader.Reader, error) {
	opts := []reader.Option{
		reader.WithLogger(s.logger),
		reader.WithMetrics(s.metrics),
	}
	if s.accessLog != nil {
		opts = append(opts, reader.WithRecorder(s.accessLog))
	}
	return reader.New(s.registry, req.Provider, req.credentials(), opts...)
}

// health never fails on integration errors; they read as an invalid token.
func (s *Server) health(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	r, err := s.newReader(req)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	valid, err := r.IsTokenValid(c.Request.Context())
	if err != nil {
		if !errors.Is(err, mailerr.ErrIntegration) {
			s.fail(c, err)
			return
		}
		valid = false
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (s *Server) folders(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	r, err := s.newReader(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": r.Folders(c.Request.Context())})
}

func (s *Server) inbox(c *gin.Context) {
	var req inboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	filter, err := req.Filter.toFilter()
	if err != nil {
		s.fail(c, err)
		return
	}
	folder, err := mail.ParseFolder(req.Folder)
	if err != nil {
		s.fail(c, err)
		return
	}
	if folder == "" && (filter == nil || filter.Folder() == "") {
		folder = mail.FolderInbox
	}

	r, err := s.newReader(req.authRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := r.FetchEmails(c.Request.Context(), provider.FetchOptions{
		PageSize: req.PageSize,
		Cursor:   req.Cursor,
		Folder:   folder,
		Filter:   filter,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := inboxResponse{Emails: res.Messages}
	if res.NextCursor != "" {
		resp.NextCursor = &res.NextCursor
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) detail(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	r, err := s.newReader(req.authRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	d, err := r.EmailDetail(c.Request.Context(), req.MessageID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) attachments(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	r, err := s.newReader(req.authRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	atts, err := r.Attachments(c.Request.Context(), req.MessageID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": atts})
}

func (s *Server) download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	r, err := s.newReader(req.authRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	content, err := r.DownloadAttachment(c.Request.Context(), req.MessageID, req.AttachmentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, downloadResponse{
		Size:          len(content),
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
}

func (s *Server) accessLogEntries(c *gin.Context) {
	if s.accessLog == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{
			Error: errorBody{
				Type:    typeAccessLogDisabled,
				Message: "access log is not enabled",
			},
			RequestID: c.GetString(requestIDKey),
		})
		return
	}

	var q accessLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badRequest(c, err)
		return
	}
	records, err := s.accessLog.RecentAccess(c.Request.Context(), store.AccessFilter{
		Provider:  q.Provider,
		Operation: q.Operation,
		Outcome:   q.Outcome,
		Limit:     q.Limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []store.AccessRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
