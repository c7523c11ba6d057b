package cookiecodec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedCookie is returned when a cookie-string segment has no "=" separator.
var ErrMalformedCookie = errors.New("cookiecodec: malformed cookie segment")

// Decode parses a raw "name=value; name2=value2" cookie string into an
// entries map plus the order in which names appeared. Empty segments and
// surrounding whitespace are tolerated; a non-empty segment without "=" is
// rejected. Values keep everything after the first "=", so values containing
// "=" survive intact.
func Decode(raw string) (map[string]string, []string, error) {
	entries := make(map[string]string)
	var order []string

	for _, segment := range strings.Split(raw, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		name, value, found := strings.Cut(segment, "=")
		if !found {
			return nil, nil, fmt.Errorf("%w: %q", ErrMalformedCookie, segment)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: %q", ErrMalformedCookie, segment)
		}

		if _, seen := entries[name]; !seen {
			order = append(order, name)
		}
		entries[name] = value
	}

	return entries, order, nil
}

// Encode serializes entries back into the canonical "name=value; ..." form.
// Names listed in order come first (skipping any that are no longer present);
// remaining names are appended in sorted order so the output is deterministic
// even when the caller has no order information.
func Encode(entries map[string]string, order []string) string {
	if len(entries) == 0 {
		return ""
	}

	parts := make([]string, 0, len(entries))
	emitted := make(map[string]bool, len(entries))

	for _, name := range order {
		value, ok := entries[name]
		if !ok || emitted[name] {
			continue
		}
		parts = append(parts, name+"="+value)
		emitted[name] = true
	}

	var rest []string
	for name := range entries {
		if !emitted[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		parts = append(parts, name+"="+entries[name])
	}

	return strings.Join(parts, "; ")
}

// ParseSetCookie extracts name/value pairs from repeated Set-Cookie response
// headers. The name is everything before the first "=", the value everything
// after it up to the first ";"; cookie attributes (Path, Expires, ...) are
// discarded. Headers without "=" in the leading segment are skipped rather
// than rejected, since servers routinely emit junk here.
func ParseSetCookie(headers []string) (map[string]string, []string) {
	entries := make(map[string]string)
	var order []string

	for _, header := range headers {
		pair, _, _ := strings.Cut(header, ";")
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, seen := entries[name]; !seen {
			order = append(order, name)
		}
		entries[name] = value
	}

	return entries, order
}
