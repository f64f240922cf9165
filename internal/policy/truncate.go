package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

const markerFormat = "\n\n[output truncated: showing %d of %d bytes]"

var markerRe = regexp.MustCompile(`\n\n\[output truncated: showing (\d+) of (\d+) bytes\]$`)

// TruncateOutput caps text at maxBytes without splitting a UTF-8 sequence and
// appends a marker with the shown and original sizes. Text that already carries
// a marker for a body within maxBytes is returned unchanged, so repeated
// application with the same limit is a no-op. maxBytes <= 0 disables the cap.
func TruncateOutput(text string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text, false
	}
	if body, ok := markedBody(text); ok && len(body) <= maxBytes {
		return text, false
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf(markerFormat, cut, len(text)), true
}

// MarkerLen is the length of the marker appended for the given sizes.
func MarkerLen(shown, original int) int {
	return len(fmt.Sprintf(markerFormat, shown, original))
}

// markedBody returns the content preceding a well-formed truncation marker.
func markedBody(text string) (string, bool) {
	loc := markerRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	shown, err := strconv.Atoi(text[loc[2]:loc[3]])
	if err != nil || shown != loc[0] {
		return "", false
	}
	return text[:loc[0]], true
}

// TruncateCaptured is TruncateOutput for text that is itself a prefix of a
// larger stream of originalSize bytes.
func TruncateCaptured(captured string, originalSize, maxBytes int) (string, bool) {
	if originalSize <= len(captured) {
		return TruncateOutput(captured, maxBytes)
	}
	cut := len(captured)
	if maxBytes > 0 && maxBytes < cut {
		cut = maxBytes
	}
	for cut > 0 && cut < len(captured) && !utf8.RuneStart(captured[cut]) {
		cut--
	}
	if cut == len(captured) {
		cut = completePrefix(captured)
	}
	return captured[:cut] + fmt.Sprintf(markerFormat, cut, originalSize), true
}

// completePrefix returns the length of s without a trailing partial rune,
// which a byte-capped capture can end with.
func completePrefix(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return i
			}
			break
		}
	}
	return len(s)
}
