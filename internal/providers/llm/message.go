package llm

import "strings"

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockImageURL BlockKind = "image_url"
)

// ContentBlock is one part of a message: either text or an image reference.
type ContentBlock struct {
	Kind BlockKind
	Text string
	URL  string
}

func Text(s string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: s}
}

func ImageURL(u string) ContentBlock {
	return ContentBlock{Kind: BlockImageURL, URL: u}
}

// Message is one chat turn sent to the completion API.
type Message struct {
	Role    Role
	Content []ContentBlock
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentBlock{Text(text)}}
}

// PlainText joins the text blocks of the message, ignoring images.
func (m Message) PlainText() string {
	var parts []string
	for _, block := range m.Content {
		if block.Kind == BlockText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Images lists the image URLs carried by the message, in order.
func (m Message) Images() []string {
	var urls []string
	for _, block := range m.Content {
		if block.Kind == BlockImageURL {
			urls = append(urls, block.URL)
		}
	}
	return urls
}
