package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxNormalizePasses bounds the fixed-point loop in Normalize.
const maxNormalizePasses = 4

var bulletReplacer = strings.NewReplacer(
	"•", " ", "●", " ", "▪", " ", "◦", " ", "‣", " ", "∙", " ",
	"■", " ", "□", " ", "◆", " ", "◇", " ", "►", " ", "▶", " ",
	"⁃", " ", "·", " ", "", " ",
)

var (
	hyphenBreakRe = regexp.MustCompile(`([\p{L}\p{N}])-[ \t]*\n[ \t]*([\p{L}\p{N}])`)
	horizontalRe  = regexp.MustCompile(`[ \t]+`)
)

// Normalize cleans raw extracted text into the canonical form the chunker
// expects. Paragraph boundaries survive as a single blank line.
func Normalize(text string) string {
	out := text
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizePass(text string) string {
	text = bulletReplacer.Replace(text)
	text = dropNonPrintable(text)
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	text = horizontalRe.ReplaceAllString(text, " ")
	text = joinLines(text)
	return norm.NFKC.String(text)
}

// dropNonPrintable removes control and format runes. Other whitespace
// becomes a plain space so words are not glued together.
func dropNonPrintable(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\r':
			return -1
		case unicode.IsSpace(r):
			return ' '
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, text)
}

// joinLines trims every line, drops blank lines and keeps at most one empty
// separator line between paragraphs.
func joinLines(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingBreak := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if b.Len() > 0 {
				pendingBreak = true
			}
			continue
		}
		if b.Len() > 0 {
			if pendingBreak {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		pendingBreak = false
		b.WriteString(line)
	}
	return b.String()
}
