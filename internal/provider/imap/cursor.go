package imap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap/v2"
)

// pageCursor resumes a listing below BeforeUID in Mailbox with the same
// search and page size.
type pageCursor struct {
	Mailbox   string       `json:"m"`
	Spec      criteriaSpec `json:"c"`
	PageSize  int          `json:"n"`
	BeforeUID uint32       `json:"b"`
	Folder    string       `json:"f,omitempty"`
}

func encodeCursor(c pageCursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (pageCursor, bool) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return pageCursor{}, false
	}
	var c pageCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return pageCursor{}, false
	}
	if c.Mailbox == "" || c.PageSize <= 0 || c.BeforeUID <= 1 {
		return pageCursor{}, false
	}
	return c, true
}

var errBadMessageID = errors.New("message id must look like <mailbox>/<uid>")

// messageID joins a mailbox and UID into the id exposed to callers.
func messageID(mailbox string, uid goimap.UID) string {
	return mailbox + "/" + strconv.FormatUint(uint64(uid), 10)
}

// parseMessageID splits at the last slash so hierarchical mailbox names
// such as "[Gmail]/Sent Mail" survive.
func parseMessageID(id string) (string, goimap.UID, error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", 0, errBadMessageID
	}
	uid, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil || uid == 0 {
		return "", 0, errBadMessageID
	}
	return id[:i], goimap.UID(uid), nil
}
