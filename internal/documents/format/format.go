// Package format renders gateway document fields for display. Gateway
// values are never modified; these helpers only produce extra strings.
package format

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
)

const (
	DisplayDateLayout = "Jan 02, 2006"
	NotAvailable      = "N/A"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// AmountDisplay renders an amount as US dollars with two decimals and
// thousands separators. Missing or unparsable amounts render as $0.00.
func AmountDisplay(amount json.RawMessage) string {
	value, err := strconv.ParseFloat(gatewaydomain.AmountText(amount), 64)
	if err != nil {
		value = 0
	}
	if value < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -value)
	}
	return "$" + humanize.FormatFloat("#,###.##", value)
}

// DateDisplay renders "Jan 01, 2024", or N/A when the date is absent or
// not a recognised timestamp.
func DateDisplay(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NotAvailable
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format(DisplayDateLayout)
		}
	}
	return NotAvailable
}

// ArtifactFilename is the document number plus the format extension. The
// number keeps its original characters; only control characters, which
// cannot travel in a header, are removed. An empty number falls back to the
// document id.
func ArtifactFilename(doc gatewaydomain.Document, format gatewaydomain.Format) string {
	base := sanitize(doc.DocumentNumber)
	if base == "" {
		base = sanitize(doc.ID)
	}
	if base == "" {
		base = "document"
	}
	return base + format.Extension()
}

func sanitize(value string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value))
}

// ASCIIFilename is a transliterated stand-in for clients that ignore the
// RFC 5987 filename* parameter. It returns "" when name is already ASCII.
func ASCIIFilename(name string) string {
	ascii := true
	for _, r := range name {
		if r > unicode.MaxASCII {
			ascii = false
			break
		}
	}
	if ascii {
		return ""
	}
	ext := path.Ext(name)
	base := slug.Make(strings.TrimSuffix(name, ext))
	if base == "" {
		base = "document"
	}
	return base + ext
}
