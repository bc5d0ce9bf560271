package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

// versionSuffixRe matches the " - v<N>.<ext>" tail of a versioned file
// name. Names without it carry no version and are ignored for numbering.
var versionSuffixRe = regexp.MustCompile(` - v([1-9][0-9]*)\.[A-Za-z0-9]+$`)

// illegalFileChars are stripped from reference identifiers before they are
// used in a file name.
var illegalFileChars = strings.NewReplacer(
	"/", "", "\\", "", ":", "", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "",
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// SanitizeReference converts a customer/lead reference to a form safe for
// file names: non-ASCII characters (Greek names are the common case) are
// transliterated, filesystem-illegal characters stripped and whitespace
// collapsed. Falls back to "document" when nothing printable survives.
func SanitizeReference(ref string) string {
	s := unidecode.Unidecode(ref)
	s = illegalFileChars.Replace(s)

	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	s = multiSpaceRe.ReplaceAllString(b.String(), " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return "document"
	}
	return s
}

// VersionedFileName builds the canonical generated-file name:
// "<reference> - <family> - v<N><ext>". ext must include the dot.
func VersionedFileName(reference, family string, version int, ext string) string {
	return fmt.Sprintf("%s - %s - v%d%s", SanitizeReference(reference), family, version, ext)
}

// FamilyPrefix is the part of a versioned file name before the version
// suffix; existing records are matched against it when numbering.
func FamilyPrefix(reference, family string) string {
	return fmt.Sprintf("%s - %s", SanitizeReference(reference), family)
}

// ParseVersion extracts the version integer from a versioned file name.
// Returns 0 when the name has no version suffix.
func ParseVersion(name string) int {
	m := versionSuffixRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	var v int
	fmt.Sscanf(m[1], "%d", &v)
	return v
}
