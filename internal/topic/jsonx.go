package topic

import (
	"errors"
	"strings"
)

// LLMs asked for "ONLY a JSON object" still wrap it in prose or
// markdown fences often enough that strict decoding is a losing game.
// These helpers cut the first JSON-shaped substring out of a response
// body; the caller decodes it and decides what a failure means.

var ErrNoJSON = errors.New("no JSON value found in response")

// ExtractObject returns the substring from the first '{' to the last
// '}' of s.
func ExtractObject(s string) (string, error) {
	return extractDelimited(s, '{', '}')
}

// ExtractArray returns the substring from the first '[' to the last
// ']' of s.
func ExtractArray(s string) (string, error) {
	return extractDelimited(s, '[', ']')
}

func extractDelimited(s string, open, close byte) (string, error) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
