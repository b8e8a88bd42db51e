package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mail-integration/internal/mailerr"
)

// SearchFilter is a provider-agnostic predicate over messages. Every field
// is optional and an empty filter matches everything. Filters are validated
// when built and cannot be changed afterwards; slice accessors return copies.
type SearchFilter struct {
	fromAddress     string
	toAddresses     []string
	subjectContains string
	bodyContains    string
	hasWords        []string
	startDate       time.Time
	endDate         time.Time
	hasAttachments  *bool
	isRead          *bool
	folder          Folder
}

// FilterOption sets one field of a SearchFilter under construction.
type FilterOption func(*SearchFilter)

// WithFrom restricts results to a sender address.
func WithFrom(address string) FilterOption {
	return func(f *SearchFilter) { f.fromAddress = strings.TrimSpace(address) }
}

// WithTo restricts results to messages addressed to every given address.
func WithTo(addresses ...string) FilterOption {
	return func(f *SearchFilter) {
		for _, a := range addresses {
			f.toAddresses = append(f.toAddresses, strings.TrimSpace(a))
		}
	}
}

// WithSubject matches a substring of the subject.
func WithSubject(text string) FilterOption {
	return func(f *SearchFilter) { f.subjectContains = text }
}

// WithBody matches free text in the body.
func WithBody(text string) FilterOption {
	return func(f *SearchFilter) { f.bodyContains = text }
}

// WithWords adds free words that must all appear. Blank words are dropped.
func WithWords(words ...string) FilterOption {
	return func(f *SearchFilter) {
		for _, w := range words {
			if strings.TrimSpace(w) != "" {
				f.hasWords = append(f.hasWords, w)
			}
		}
	}
}

// WithStartDate keeps messages received on or after t.
func WithStartDate(t time.Time) FilterOption {
	return func(f *SearchFilter) { f.startDate = t }
}

// WithEndDate keeps messages received on or before t.
func WithEndDate(t time.Time) FilterOption {
	return func(f *SearchFilter) { f.endDate = t }
}

// WithAttachments filters on attachment presence.
func WithAttachments(has bool) FilterOption {
	return func(f *SearchFilter) { f.hasAttachments = &has }
}

// WithRead filters on read state.
func WithRead(read bool) FilterOption {
	return func(f *SearchFilter) { f.isRead = &read }
}

// WithFolder narrows the search to a folder. It is a search constraint,
// not navigation, and must agree with any navigational folder.
func WithFolder(folder Folder) FilterOption {
	return func(f *SearchFilter) { f.folder = folder }
}

// NewSearchFilter builds and validates a filter.
func NewSearchFilter(opts ...FilterOption) (*SearchFilter, error) {
	f := &SearchFilter{}
	for _, opt := range opts {
		opt(f)
	}

	if f.fromAddress != "" && !strings.Contains(f.fromAddress, "@") {
		return nil, mailerr.InvalidFilter(
			fmt.Sprintf("from address %q is not an email address", f.fromAddress),
		)
	}
	for _, a := range f.toAddresses {
		if !strings.Contains(a, "@") {
			return nil, mailerr.InvalidFilter(
				fmt.Sprintf("to address %q is not an email address", a),
			)
		}
	}
	if !f.startDate.IsZero() && !f.endDate.IsZero() &&
		f.startDate.After(f.endDate) {
		return nil, mailerr.InvalidFilter(
			fmt.Sprintf(
				"start date %s is after end date %s",
				f.startDate.Format(time.RFC3339),
				f.endDate.Format(time.RFC3339),
			),
		)
	}
	if f.folder != "" && !f.folder.Valid() {
		return nil, mailerr.InvalidFilter(
			fmt.Sprintf("unknown folder %q", string(f.folder)),
		)
	}

	return f, nil
}

// FromAddress returns the sender constraint, or "".
func (f *SearchFilter) FromAddress() string { return f.fromAddress }

// ToAddresses returns a copy of the recipient constraints.
func (f *SearchFilter) ToAddresses() []string { return clone(f.toAddresses) }

// SubjectContains returns the subject constraint, or "".
func (f *SearchFilter) SubjectContains() string { return f.subjectContains }

// BodyContains returns the body constraint, or "".
func (f *SearchFilter) BodyContains() string { return f.bodyContains }

// HasWords returns a copy of the free words.
func (f *SearchFilter) HasWords() []string { return clone(f.hasWords) }

// StartDate returns the lower date bound and whether it is set.
func (f *SearchFilter) StartDate() (time.Time, bool) {
	return f.startDate, !f.startDate.IsZero()
}

// EndDate returns the upper date bound and whether it is set.
func (f *SearchFilter) EndDate() (time.Time, bool) {
	return f.endDate, !f.endDate.IsZero()
}

// HasAttachments returns the attachment constraint and whether it is set.
func (f *SearchFilter) HasAttachments() (value, set bool) {
	if f.hasAttachments == nil {
		return false, false
	}
	return *f.hasAttachments, true
}

// IsRead returns the read-state constraint and whether it is set.
func (f *SearchFilter) IsRead() (value, set bool) {
	if f.isRead == nil {
		return false, false
	}
	return *f.isRead, true
}

// Folder returns the folder constraint, or the zero Folder.
func (f *SearchFilter) Folder() Folder { return f.folder }

// IsEmpty reports whether no field is set.
func (f *SearchFilter) IsEmpty() bool {
	return f.fromAddress == "" &&
		len(f.toAddresses) == 0 &&
		f.subjectContains == "" &&
		f.bodyContains == "" &&
		len(f.hasWords) == 0 &&
		f.startDate.IsZero() &&
		f.endDate.IsZero() &&
		f.hasAttachments == nil &&
		f.isRead == nil &&
		f.folder == ""
}

// ResolveFolder picks the folder a listing should navigate to: the
// navigational folder when given, otherwise the filter's folder. Setting
// both to different folders is an invalid filter.
func ResolveFolder(navigation Folder, filter *SearchFilter) (Folder, error) {
	if filter == nil || filter.folder == "" {
		return navigation, nil
	}
	if navigation == "" {
		return filter.folder, nil
	}
	if navigation != filter.folder {
		return "", mailerr.InvalidFilter(
			fmt.Sprintf(
				"folder %q conflicts with filter folder %q",
				string(navigation), string(filter.folder),
			),
		)
	}
	return navigation, nil
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
