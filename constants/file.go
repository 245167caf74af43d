package constants

import "strings"

// FileFormat is the canonical input-format tag for uploaded documents.
type FileFormat string

const (
	PDF   FileFormat = "PDF"
	DOCX  FileFormat = "DOCX"
	TXT   FileFormat = "TXT"
	HTML  FileFormat = "HTML"
	IMAGE FileFormat = "IMAGE"
)

// AllowedExtensions holds the extensions the pipeline accepts for upload.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"txt":  {},
	"md":   {},
	"html": {},
	"htm":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a FileFormat.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "txt", "md":
		return TXT
	case "html", "htm":
		return HTML
	case "jpg", "jpeg", "png", "tiff":
		return IMAGE
	default:
		return ""
	}
}
