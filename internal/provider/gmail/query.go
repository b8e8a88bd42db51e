package gmail

import (
	"strconv"
	"strings"

	"github.com/nhle/mail-integration/internal/mail"
)

// folderLabels maps logical folders onto Gmail system label ids.
var folderLabels = map[mail.Folder]string{
	mail.FolderInbox:   "INBOX",
	mail.FolderSent:    "SENT",
	mail.FolderDrafts:  "DRAFT",
	mail.FolderDeleted: "TRASH",
	mail.FolderArchive: "ARCHIVE",
	mail.FolderSpam:    "SPAM",
	mail.FolderStarred: "STARRED",
}

// BuildQuery translates filter into a Gmail search string. Clauses are
// emitted in a fixed order so the output is deterministic. It returns ""
// when the filter has no active clause.
func BuildQuery(filter *mail.SearchFilter) string {
	if filter == nil {
		return ""
	}

	var q []string

	if label, ok := folderLabels[filter.Folder()]; ok {
		q = append(q, "in:"+strings.ToLower(label))
	}

	if from := filter.FromAddress(); from != "" {
		q = append(q, "from:"+from)
	}
	for _, to := range filter.ToAddresses() {
		q = append(q, "to:"+to)
	}

	if subject := filter.SubjectContains(); subject != "" {
		q = append(q, "subject:"+subject)
	}
	if body := filter.BodyContains(); body != "" {
		q = append(q, body)
	}
	q = append(q, filter.HasWords()...)

	if has, set := filter.HasAttachments(); set && has {
		q = append(q, "has:attachment")
	}

	if read, set := filter.IsRead(); set {
		if read {
			q = append(q, "is:read")
		} else {
			q = append(q, "is:unread")
		}
	}

	if start, ok := filter.StartDate(); ok {
		q = append(q, "after:"+strconv.FormatInt(start.Unix(), 10))
	}
	if end, ok := filter.EndDate(); ok {
		q = append(q, "before:"+strconv.FormatInt(end.Unix(), 10))
	}

	return strings.Join(q, " ")
}
