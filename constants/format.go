package constants

import "strings"

// Format identifies the container format of an uploaded form.
type Format string

const (
	XLSX Format = "XLSX"
	DOCX Format = "DOCX"
	PDF  Format = "PDF"
)

// Formats holds the supported form formats.
var Formats = []Format{XLSX, DOCX, PDF}

// AllowedExtensions holds the file extensions accepted for form uploads.
var AllowedExtensions = map[string]Format{
	"xlsx": XLSX,
	"docx": DOCX,
	"pdf":  PDF,
}

// MIMETypes maps a format to the content type used when streaming back a filled form.
var MIMETypes = map[Format]string{
	XLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	DOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	PDF:  "application/pdf",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the format for a filename extension, or "" when unsupported.
func MapExtToFormat(ext string) Format {
	return AllowedExtensions[NormalizeExt(ext)]
}
