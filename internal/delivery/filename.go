package delivery

import (
	"crypto/rand"
	"encoding/hex"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// maxBaseNameLength caps the sanitized portion of an upload name, counted in
// characters. The prefix added by UniqueName comes on top of this.
const maxBaseNameLength = 100

// fallbackName is used when sanitization consumes the entire input.
const fallbackName = "file"

// invalidChars are rejected by the remote drive in item names.
const invalidChars = `"*:<>?/\|`

// slashLookAlikes are unicode characters that render like path separators.
// They are stripped so a display name can never masquerade as a path.
var slashLookAlikes = []rune{
	'⁄', // fraction slash
	'∕', // division slash
	'⧸', // big solidus
	'／', // fullwidth solidus
	'＼', // fullwidth reverse solidus
}

// SanitizeFileName reduces an untrusted client-supplied name to a safe drive
// item name. Path components are discarded, invalid and look-alike separator
// characters removed, dot runs collapsed, and the result length-capped.
func SanitizeFileName(name string) string {
	// Keep only the final path element, for either separator convention.
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidChars, r) {
			continue
		}
		if isSlashLookAlike(r) {
			continue
		}
		b.WriteRune(r)
	}
	name = b.String()

	// Collapse ".." runs so the name cannot read like a traversal.
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.Trim(name, " .")

	if name == "" {
		return fallbackName
	}
	if utf8.RuneCountInString(name) > maxBaseNameLength {
		name = capWithExtension(name, maxBaseNameLength)
	}
	return name
}

// UniqueName prefixes a sanitized name with a timestamp and random tag so
// two mentees uploading "notes.pdf" in the same second still get distinct
// drive items.
func UniqueName(sanitized string) string {
	return time.Now().UTC().Format("20060102T150405") + "_" + randomTag() + "_" + sanitized
}

func isSlashLookAlike(r rune) bool {
	for _, s := range slashLookAlikes {
		if r == s {
			return true
		}
	}
	return false
}

// capWithExtension truncates to max characters while keeping a short
// extension intact when one exists.
func capWithExtension(name string, max int) string {
	ext := path.Ext(name)
	extLen := utf8.RuneCountInString(ext)
	if extLen > 10 || extLen >= max {
		ext = ""
		extLen = 0
	}
	base := []rune(strings.TrimSuffix(name, ext))
	keep := max - extLen
	if keep > len(base) {
		keep = len(base)
	}
	capped := strings.Trim(string(base[:keep]), " .")
	if capped == "" {
		capped = fallbackName
	}
	return capped + ext
}

func randomTag() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
