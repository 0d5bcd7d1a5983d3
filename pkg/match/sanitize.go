package match

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUtteranceSize is the largest utterance, in bytes, a preview accepts.
const MaxUtteranceSize = 1000

var (
	ErrUtteranceTooLarge = errors.New("utterance exceeds maximum allowed size")
	ErrInvalidUTF8       = errors.New("utterance contains invalid UTF-8 sequences")
)

// Sanitize rejects oversized or invalid UTF-8 utterances and strips control
// characters (ANSI escapes, NUL, BEL) so they never reach transcripts,
// logs or terminals. Newlines and tabs are kept.
func Sanitize(utterance string) (string, error) {
	if len(utterance) > MaxUtteranceSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrUtteranceTooLarge, len(utterance), MaxUtteranceSize)
	}
	if !utf8.ValidString(utterance) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(utterance, unsafeControl) < 0 {
		return utterance, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, utterance), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
