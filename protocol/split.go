package protocol

import "strings"

// BodySeparator separates tokens inside a frame body.
const BodySeparator = " "

// Split3 splits body into at most three tokens. The last token keeps
// any separators it contains, so "4 urls a b" yields ["4" "urls" "a b"].
func Split3(body string) []string {
	return strings.SplitN(body, BodySeparator, 3)
}

// Split2 is Split3 for two tokens.
func Split2(body string) []string {
	return strings.SplitN(body, BodySeparator, 2)
}

func SplitAll(body string) []string {
	return strings.Split(body, BodySeparator)
}

func Join(parts ...string) string {
	return strings.Join(parts, BodySeparator)
}
