package importer

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/opds-community/libopds2-go/opds1"
)

type clLogger struct {
	logger        *slog.Logger
	levelSkipLink slog.Leveler
}

// chooseLink returns the single link accepted by matcher. matcher returns the reason for
// rejecting a link, or "" to accept it.
func chooseLink(e *opds1.Entry, matcher func(link *opds1.Link) string, l clLogger) *opds1.Link {
	var ret *opds1.Link

	for _, link := range e.Links {
		link.Rel = strings.TrimSpace(link.Rel)
		link.TypeLink = strings.TrimSpace(link.TypeLink)

		if matcher != nil {
			mismatch := matcher(&link)
			if mismatch != "" {
				if l.levelSkipLink != nil {
					l.logger.LogAttrs(context.Background(), l.levelSkipLink.Level(), "Skip non-matching link: "+mismatch)
				}

				continue
			}
		}

		if ret != nil {
			l.logger.Warn("Skip duplicate matching link: " + link.Href)
			continue
		}

		ret = &link
	}

	return ret
}

// Some feeds include characters the XML decoder rejects outright.
func removeDisallowedCodepoints(bs []byte, l *slog.Logger) []byte {
	ret := make([]byte, 0, len(bs))
	buf := bs

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			l.Warn("Going to fail XML parsing because the bytes do not represent valid UTF8")
			return bs
		}

		if isInCharacterRange(r) {
			ret = append(ret, buf[:size]...)
		} else {
			l.Warn("Removed invalid rune from XML")
		}

		buf = buf[size:]
	}

	return ret
}

// Char production of the XML 1.0 spec, section 2.2.
func isInCharacterRange(r rune) bool {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
