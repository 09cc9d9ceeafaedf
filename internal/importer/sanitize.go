package importer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// reservedNameChars are rejected in destination item names.
var reservedNameChars = strings.NewReplacer(
	`"`, "_",
	"*", "_",
	":", "_",
	"<", "_",
	">", "_",
	"?", "_",
	"/", "_",
	`\`, "_",
	"|", "_",
)

// SanitizeTitle normalizes a photo title into a destination-safe
// filename: Unicode NFC so composed and decomposed spellings of the
// same title map to one name, reserved characters replaced, and
// surrounding whitespace and dots trimmed. An empty result falls back
// to fallback (the photo id). The destination still renames on a name
// collision, so uniqueness per folder is its job, not ours.
func SanitizeTitle(title, fallback string) string {
	name := norm.NFC.String(title)
	name = reservedNameChars.Replace(name)
	name = strings.Trim(name, " .")

	if name == "" {
		return fallback
	}

	return name
}
