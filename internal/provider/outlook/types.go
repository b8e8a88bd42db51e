package outlook

// EmailAddress is a Graph emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient wraps an EmailAddress as used by from/toRecipients/etc.
type Recipient struct {
	EmailAddress *EmailAddress `json:"emailAddress"`
}

// ItemBody is a message body with its content type ("text" or "html").
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// AttachmentResource is a Graph fileAttachment. ContentBytes is only
// present when explicitly selected and is standard base64.
type AttachmentResource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

// Message is the subset of the Graph message resource this package reads.
type Message struct {
	ID               string      `json:"id"`
	Subject          string      `json:"subject"`
	From             *Recipient  `json:"from"`
	ToRecipients     []Recipient `json:"toRecipients"`
	CcRecipients     []Recipient `json:"ccRecipients"`
	BccRecipients    []Recipient `json:"bccRecipients"`
	ReceivedDateTime string      `json:"receivedDateTime"`
	BodyPreview      string      `json:"bodyPreview"`
	Body             *ItemBody   `json:"body"`
	HasAttachments   bool        `json:"hasAttachments"`

	// Attachments is only populated when the request expanded them.
	Attachments []AttachmentResource `json:"attachments"`

	// InferenceClassification is "focused" or "other".
	InferenceClassification string `json:"inferenceClassification"`
}

// MessagePage is a page of messages with its @odata.nextLink.
type MessagePage struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// AttachmentPage is the response of a list-attachments call.
type AttachmentPage struct {
	Value []AttachmentResource `json:"value"`
}

// User is the response of GET /me.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ErrorResponse is the Graph error envelope.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
