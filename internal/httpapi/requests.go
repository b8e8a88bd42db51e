package httpapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/provider"
)

var registerOnce sync.Once

// registerValidators adds the mailfolder tag to gin's validator engine.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("mailfolder", func(fl validator.FieldLevel) bool {
			_, err := mail.ParseFolder(fl.Field().String())
			return err == nil
		})
	})
}

type authRequest struct {
	Provider    string `json:"provider" binding:"required,max=32"`
	AccessToken string `json:"access_token" binding:"max=8192"`

	// Account is the login name for providers that need one (imap).
	Account string `json:"account" binding:"max=320"`
}

func (r authRequest) credentials() provider.Credentials {
	return provider.Credentials{AccessToken: r.AccessToken, Account: r.Account}
}

type filterRequest struct {
	FromAddress     string     `json:"from_address" binding:"max=320"`
	ToAddresses     []string   `json:"to_addresses" binding:"max=50,dive,max=320"`
	SubjectContains string     `json:"subject_contains" binding:"max=500"`
	BodyContains    string     `json:"body_contains" binding:"max=500"`
	HasWords        []string   `json:"has_words" binding:"max=50,dive,max=100"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	HasAttachments  *bool      `json:"has_attachments"`
	IsRead          *bool      `json:"is_read"`
	Folder          string     `json:"folder" binding:"omitempty,mailfolder"`
}

// toFilter builds the domain filter, which applies its own invariants.
func (r *filterRequest) toFilter() (*mail.SearchFilter, error) {
	if r == nil {
		return nil, nil
	}
	var opts []mail.FilterOption
	if r.FromAddress != "" {
		opts = append(opts, mail.WithFrom(r.FromAddress))
	}
	if len(r.ToAddresses) > 0 {
		opts = append(opts, mail.WithTo(r.ToAddresses...))
	}
	if r.SubjectContains != "" {
		opts = append(opts, mail.WithSubject(r.SubjectContains))
	}
	if r.BodyContains != "" {
		opts = append(opts, mail.WithBody(r.BodyContains))
	}
	if len(r.HasWords) > 0 {
		opts = append(opts, mail.WithWords(r.HasWords...))
	}
	if r.StartDate != nil {
		opts = append(opts, mail.WithStartDate(*r.StartDate))
	}
	if r.EndDate != nil {
		opts = append(opts, mail.WithEndDate(*r.EndDate))
	}
	if r.HasAttachments != nil {
		opts = append(opts, mail.WithAttachments(*r.HasAttachments))
	}
	if r.IsRead != nil {
		opts = append(opts, mail.WithRead(*r.IsRead))
	}
	if r.Folder != "" {
		folder, err := mail.ParseFolder(r.Folder)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mail.WithFolder(folder))
	}
	return mail.NewSearchFilter(opts...)
}

type inboxRequest struct {
	authRequest
	PageSize int            `json:"page_size" binding:"gte=0"`
	Cursor   string         `json:"cursor" binding:"max=8192"`
	Folder   string         `json:"folder" binding:"omitempty,mailfolder"`
	Filter   *filterRequest `json:"filter"`
}

type messageRequest struct {
	authRequest
	MessageID string `json:"message_id" binding:"required,max=1024"`
}

type downloadRequest struct {
	authRequest
	MessageID    string `json:"message_id" binding:"required,max=1024"`
	AttachmentID string `json:"attachment_id" binding:"required,max=4096"`
}

type accessLogQuery struct {
	Provider  string `form:"provider" binding:"max=32"`
	Operation string `form:"operation" binding:"max=64"`
	Outcome   string `form:"outcome" binding:"omitempty,oneof=success error"`
	Limit     int    `form:"limit" binding:"gte=0"`
}
