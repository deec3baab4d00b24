// Package tokens estimates token counts for generated content whose producer
// did not report usage.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding, or a character heuristic
// when the encoding could not be loaded.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads encoding (cl100k_base when empty). A load failure is
// logged and the counter degrades to the heuristic.
func NewCounter(encoding string, logger *zerolog.Logger) *Counter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn().Err(err).Str("encoding", encoding).Msg("tiktoken unavailable; using heuristic token estimate")
		return &Counter{}
	}
	return &Counter{enc: enc}
}

func (c *Counter) Count(text string) int64 {
	if c != nil && c.enc != nil {
		return int64(len(c.enc.Encode(text, nil, nil)))
	}
	return estimate(text)
}

// estimate is max(runes/4, words), at least 1 for non-blank text.
func estimate(text string) int64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	n := len([]rune(trimmed)) / 4
	if w := len(strings.Fields(trimmed)); n < w {
		n = w
	}
	return int64(max(n, 1))
}
