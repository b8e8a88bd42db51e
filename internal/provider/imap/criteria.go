package imap

import (
	"time"

	goimap "github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-integration/internal/mail"
)

// criteriaSpec is a serializable snapshot of the search to run. It travels
// inside cursors so a continuation repeats the original search.
type criteriaSpec struct {
	From           string    `json:"from,omitempty"`
	To             []string  `json:"to,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	Body           string    `json:"body,omitempty"`
	Words          []string  `json:"words,omitempty"`
	Since          time.Time `json:"since,omitempty"`
	Before         time.Time `json:"before,omitempty"`
	Seen           *bool     `json:"seen,omitempty"`
	Flagged        bool      `json:"flagged,omitempty"`
	HasAttachments bool      `json:"attachments,omitempty"`
}

func specFromFilter(filter *mail.SearchFilter) criteriaSpec {
	var s criteriaSpec
	if filter == nil {
		return s
	}
	s.From = filter.FromAddress()
	s.To = filter.ToAddresses()
	s.Subject = filter.SubjectContains()
	s.Body = filter.BodyContains()
	s.Words = filter.HasWords()
	if start, ok := filter.StartDate(); ok {
		s.Since = start.UTC()
	}
	if end, ok := filter.EndDate(); ok {
		s.Before = end.UTC()
	}
	if read, set := filter.IsRead(); set {
		s.Seen = &read
	}
	if has, set := filter.HasAttachments(); set && has {
		s.HasAttachments = true
	}
	return s
}

// criteria renders the snapshot as IMAP SEARCH criteria.
//
// IMAP date keys ignore the time of day and BEFORE is exclusive, so the end
// date is widened to the following day to keep it inclusive.
func (s criteriaSpec) criteria() *goimap.SearchCriteria {
	c := &goimap.SearchCriteria{}

	if s.From != "" {
		c.Header = append(c.Header, goimap.SearchCriteriaHeaderField{Key: "From", Value: s.From})
	}
	for _, to := range s.To {
		c.Header = append(c.Header, goimap.SearchCriteriaHeaderField{Key: "To", Value: to})
	}
	if s.Subject != "" {
		c.Header = append(c.Header, goimap.SearchCriteriaHeaderField{Key: "Subject", Value: s.Subject})
	}
	if s.HasAttachments {
		c.Header = append(c.Header, goimap.SearchCriteriaHeaderField{
			Key: "Content-Type", Value: "multipart/mixed",
		})
	}

	if s.Body != "" {
		c.Body = append(c.Body, s.Body)
	}
	c.Text = append(c.Text, s.Words...)

	if !s.Since.IsZero() {
		c.Since = truncateDay(s.Since)
	}
	if !s.Before.IsZero() {
		c.Before = truncateDay(s.Before).AddDate(0, 0, 1)
	}

	if s.Seen != nil {
		if *s.Seen {
			c.Flag = append(c.Flag, goimap.FlagSeen)
		} else {
			c.NotFlag = append(c.NotFlag, goimap.FlagSeen)
		}
	}
	if s.Flagged {
		c.Flag = append(c.Flag, goimap.FlagFlagged)
	}
	return c
}

// BuildCriteria translates filter into IMAP SEARCH criteria.
func BuildCriteria(filter *mail.SearchFilter) *goimap.SearchCriteria {
	return specFromFilter(filter).criteria()
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
