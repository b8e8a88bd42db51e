package gmail

import (
	"encoding/base64"
	"encoding/json"
)

// listRequest is everything needed to replay a messages.list call. It is
// carried inside the cursor so a continuation never depends on the folder
// or filter of the request that resumes it.
type listRequest struct {
	PageToken  string   `json:"pt"`
	LabelIDs   []string `json:"l,omitempty"`
	Query      string   `json:"q,omitempty"`
	MaxResults int64    `json:"n"`

	// Folder is the logical folder the listing was started for; resumed
	// messages are labelled with it.
	Folder string `json:"f,omitempty"`
}

func encodeCursor(r listRequest) string {
	// Marshalling a struct of strings and ints cannot fail.
	b, _ := json.Marshal(r)
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor returns the request encoded in cursor. ok is false when the
// cursor is not one of ours (for instance a raw Gmail page token).
func decodeCursor(cursor string) (r listRequest, ok bool) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return listRequest{}, false
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return listRequest{}, false
	}
	if r.PageToken == "" || r.MaxResults <= 0 {
		return listRequest{}, false
	}
	return r, true
}
