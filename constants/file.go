package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// SourceKind is the structural family of an uploaded document.
type SourceKind string

const (
	SourceTabular SourceKind = "tabular"
	SourceFlow    SourceKind = "flow"
)

// SourceKinds holds the values accepted for the source_kind column.
var SourceKinds = []string{string(SourceTabular), string(SourceFlow)}

// AllowedExtensions holds the default allowed file extensions for template ingestion.
var AllowedExtensions = map[string]SourceKind{
	"xlsx": SourceTabular,
	"xlsm": SourceTabular,
	"xltx": SourceTabular,
	"docx": SourceFlow,
	"dotx": SourceFlow,
}

var mimeKinds = map[string]SourceKind{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       SourceTabular,
	"application/vnd.ms-excel.sheet.macroenabled.12":                          SourceTabular,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.template":    SourceTabular,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": SourceFlow,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.template": SourceFlow,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SourceKindFromFilename maps a file name to its SourceKind by extension.
func SourceKindFromFilename(name string) (SourceKind, bool) {
	kind, ok := AllowedExtensions[NormalizeExt(filepath.Ext(name))]
	return kind, ok
}

// SourceKindFromMIME maps a declared MIME type (parameters allowed) to a SourceKind.
func SourceKindFromMIME(mimeType string) (SourceKind, bool) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", false
	}
	kind, ok := mimeKinds[strings.ToLower(mt)]
	return kind, ok
}

func (k SourceKind) Valid() bool {
	return k == SourceTabular || k == SourceFlow
}
