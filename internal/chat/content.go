package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ContentPartType discriminates content parts on the wire.
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image_url"
)

// ContentPart is one element of rich message content.
type ContentPart interface {
	PartType() ContentPartType
	isContentPart()
}

// TextPart is a text segment of rich content.
type TextPart struct {
	Text string
}

func (TextPart) PartType() ContentPartType { return ContentPartText }
func (TextPart) isContentPart()            {}

func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type ContentPartType `json:"type"`
		Text string          `json:"text"`
	}{ContentPartText, p.Text})
}

// ImageDetail is the fidelity hint of an image part. The zero value leaves it
// to the server.
type ImageDetail string

const (
	ImageDetailAuto ImageDetail = "auto"
	ImageDetailLow  ImageDetail = "low"
	ImageDetailHigh ImageDetail = "high"
)

func (d ImageDetail) valid() bool {
	switch d {
	case "", ImageDetailAuto, ImageDetailLow, ImageDetailHigh:
		return true
	}
	return false
}

// ImagePart references an image by URL or data URI.
type ImagePart struct {
	URL    string
	Detail ImageDetail
}

func (ImagePart) PartType() ContentPartType { return ContentPartImage }
func (ImagePart) isContentPart()            {}

type imageURLWire struct {
	URL    string      `json:"url"`
	Detail ImageDetail `json:"detail,omitempty"`
}

func (p ImagePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     ContentPartType `json:"type"`
		ImageURL imageURLWire    `json:"image_url"`
	}{ContentPartImage, imageURLWire{URL: p.URL, Detail: p.Detail}})
}

// Content is message content: plain text, or an ordered list of parts when
// Parts is non-nil.
type Content struct {
	Text  string
	Parts []ContentPart
}

// Text returns plain content.
func Text(s string) Content { return Content{Text: s} }

// Parts returns rich content made of the given parts.
func Parts(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsRich reports whether the content is a part list.
func (c Content) IsRich() bool { return c.Parts != nil }

// String flattens the content into text, joining text parts with newlines.
func (c Content) String() string {
	if !c.IsRich() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if t, ok := p.(TextPart); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsRich() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &DecodeError{Target: "content", Data: data, Err: err}
		}
		*c = Content{Text: s}
		return nil
	case len(data) > 0 && data[0] == '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return &DecodeError{Target: "content", Data: data, Err: err}
		}
		parts := make([]ContentPart, 0, len(raws))
		for i, raw := range raws {
			part, err := DecodeContentPart(raw)
			if err != nil {
				return &DecodeError{Target: fmt.Sprintf("content[%d]", i), Data: raw, Err: err}
			}
			parts = append(parts, part)
		}
		*c = Content{Parts: parts}
		return nil
	}
	return &DecodeError{Target: "content", Data: data, Err: fmt.Errorf("expected string or array")}
}
