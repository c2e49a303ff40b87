package types

import (
	"strings"
	"time"
)

// TextBlock is one node of a long-form attribute's content sequence.
type TextBlock struct {
	ID        ID        `json:"id"`
	Content   string    `json:"content"`
	Next      *ID       `json:"next,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LongformContent is the ordered block sequence of a long-form attribute value.
type LongformContent struct {
	ID     ID          `json:"id"` // Long-form attribute value ID.
	Blocks []TextBlock `json:"blocks"`
}

// LongformSeparator joins block contents when a long-form value is read as a
// single string.
const LongformSeparator = "\n"

// Text returns the block contents joined with LongformSeparator.
func (c *LongformContent) Text() string {
	parts := make([]string, len(c.Blocks))
	for i, b := range c.Blocks {
		parts[i] = b.Content
	}
	return strings.Join(parts, LongformSeparator)
}
