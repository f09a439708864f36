// Package filename picks the local name for a downloaded asset.
//
// Resolve tries, in order: the last segment of the source URL path, the
// original upload name, and a name built from the alt text (or ID) plus an
// extension derived from the MIME type. The result is always a single path
// element with an extension.
package filename

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"shopfiles/pkg/models"
)

// DefaultExtension is used when the MIME type is missing or unusable
const DefaultExtension = "jpg"

var unsafeBaseChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Resolve returns the file name for d. It is pure and deterministic.
func Resolve(d models.AssetDescriptor) string {
	ext := Extension(d.MimeType)

	name := fromURL(d.SourceURL())
	if name == "" {
		name = baseName(d.OriginalFilename)
	}
	if name == "" {
		base := d.Alt
		if base == "" {
			base = d.ID
		}
		base = unsafeBaseChars.ReplaceAllString(base, "_")
		if base == "" {
			base = "file"
		}
		name = base + "." + ext
	}

	if path.Ext(name) == "" {
		name += "." + ext
	}
	return name
}

// fromURL returns the sanitised last path segment of raw, or "" if none
func fromURL(raw string) string {
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexByte(raw, '?'); i >= 0 {
		p = raw[:i]
	}
	return baseName(p)
}

// baseName takes the final element of p, treating both slash kinds as
// separators, and sanitises it
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return Sanitize(p)
}

// Sanitize makes name safe as a single path element. Separators, NUL and
// control characters become "_". Empty and dot-only names yield "".
func Sanitize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)

	cleaned = strings.TrimSpace(cleaned)
	if strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return cleaned
}

// Extension derives a file extension (without dot) from a MIME type:
// "image/png" gives "png", "image/svg+xml" gives "svg". Anything unusable
// gives DefaultExtension.
func Extension(mimeType string) string {
	if mimeType == "" {
		return DefaultExtension
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return DefaultExtension
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return DefaultExtension
	}
	if i := strings.IndexByte(subtype, '+'); i >= 0 {
		subtype = subtype[:i]
	}
	subtype = strings.ToLower(unsafeBaseChars.ReplaceAllString(subtype, ""))
	subtype = strings.Trim(subtype, ".")
	if subtype == "" {
		return DefaultExtension
	}
	return subtype
}
