package mail

import (
	"strings"

	"github.com/nhle/mail-integration/internal/mailerr"
)

// Folder is a provider-agnostic mailbox partition. Providers map each
// folder to their own native identifier. The zero value means no folder.
type Folder string

const (
	FolderInbox   Folder = "inbox"
	FolderSent    Folder = "sent"
	FolderDrafts  Folder = "drafts"
	FolderDeleted Folder = "deleted"
	FolderArchive Folder = "archive"
	FolderSpam    Folder = "spam"
	FolderStarred Folder = "starred"
)

var allFolders = []Folder{
	FolderInbox,
	FolderSent,
	FolderDrafts,
	FolderDeleted,
	FolderArchive,
	FolderSpam,
	FolderStarred,
}

// Folders returns every logical folder in declaration order.
func Folders() []Folder {
	out := make([]Folder, len(allFolders))
	copy(out, allFolders)
	return out
}

// Valid reports whether f is one of the declared folders.
func (f Folder) Valid() bool {
	for _, known := range allFolders {
		if f == known {
			return true
		}
	}
	return false
}

func (f Folder) String() string {
	return string(f)
}

// ParseFolder converts a case-insensitive folder name. An empty string
// yields the zero Folder without error.
func ParseFolder(s string) (Folder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	f := Folder(s)
	if !f.Valid() {
		return "", mailerr.InvalidFilter("unknown folder " + `"` + s + `"`)
	}
	return f, nil
}
