// File: internal/domain/message.go
package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// GroundingChunk is a single source citation attached to a search-augmented
// response.
type GroundingChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Attachment is an inline binary payload handed to the orchestrator.
// Data is base64 without a data-URI prefix. Callers enforce the size bound
// before constructing one.
type Attachment struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// MaxAttachmentBytes is the documented upper bound for the decoded payload.
const MaxAttachmentBytes = 4 << 20

// DataURI returns the attachment as a render-ready data URI.
func (a Attachment) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MimeType, a.Data)
}

// DecodedSize reports the decoded payload length without decoding.
func (a Attachment) DecodedSize() int {
	return base64.StdEncoding.DecodedLen(len(a.Data))
}

// AttachmentFromDataURI reconstructs an attachment from a stored data URI,
// used when a regenerated turn originally carried an image.
func AttachmentFromDataURI(uri string) (*Attachment, bool) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, false
	}
	meta, data, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, false
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if mimeType == "" || data == "" {
		return nil, false
	}
	return &Attachment{MimeType: mimeType, Data: data}, true
}

// Message is one conversational turn. Text may be empty while a response is
// still streaming into it.
type Message struct {
	Role            Role             `json:"role"`
	Text            string           `json:"text"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	VideoURL        string           `json:"videoUrl,omitempty"`
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`

	// TitleHint carries the clean prompt behind a templated action label so
	// the title generator never has to pattern-match the rendered text.
	TitleHint string `json:"titleHint,omitempty"`
}

// IsPlainText reports whether the message can be replayed into a remote
// conversation context. Turns carrying media or citations are excluded since
// the remote history format does not accept them.
func (m Message) IsPlainText() bool {
	return m.ImageURL == "" && m.VideoURL == "" && len(m.GroundingChunks) == 0
}

// IsEmpty reports whether a model message has neither text nor media. Such a
// message is a valid transient state while streaming but must not be
// rendered once settled.
func (m Message) IsEmpty() bool {
	return m.Text == "" && m.ImageURL == "" && m.VideoURL == ""
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if len(m.GroundingChunks) > 0 {
		out.GroundingChunks = make([]GroundingChunk, len(m.GroundingChunks))
		copy(out.GroundingChunks, m.GroundingChunks)
	}
	return out
}
