// Package msgid encodes conversation references into the opaque channel id
// strings exposed to Satori clients.
//
// Two conversation kinds share one identifier space: a group conversation
// encodes as the bare decimal group number, a direct (friend) conversation
// as the number behind a "private:" prefix. A digit string can never carry
// the prefix, so the two kinds cannot collide.
package msgid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the conversation type multiplexed into a channel id.
type Kind int

const (
	// KindGroup addresses a group conversation
	KindGroup Kind = 1
	// KindDirect addresses a user-to-user conversation
	KindDirect Kind = 2
)

const directPrefix = "private:"

var (
	// ErrUnsupportedKind is returned when encoding an unknown conversation kind.
	ErrUnsupportedKind = errors.New("unsupported conversation kind")
	// ErrMalformedID is returned when decoding a string that no valid
	// encoding produces.
	ErrMalformedID = errors.New("malformed channel id")
)

// Encode builds the channel id string for a conversation.
func Encode(kind Kind, id int64) (string, error) {
	switch kind {
	case KindGroup:
		return strconv.FormatInt(id, 10), nil
	case KindDirect:
		return directPrefix + strconv.FormatInt(id, 10), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedKind, kind)
	}
}

// Decode parses a channel id back into its conversation kind and numeric id.
func Decode(s string) (Kind, int64, error) {
	if rest, ok := strings.CutPrefix(s, directPrefix); ok {
		id, err := parseID(rest)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrMalformedID, s)
		}
		return KindDirect, id, nil
	}
	id, err := parseID(s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return KindGroup, id, nil
}

func parseID(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	// strconv accepts leading signs and zeros, which encode never emits
	if s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	if s[0] == '0' && len(s) > 1 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
