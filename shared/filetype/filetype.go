// Package filetype classifies declared content types into the icon
// category and human label shown on attachment previews. Classification
// is a pure lookup: exact match first, then top-level media type prefix,
// then archive substring heuristics, then a generic fallback.
package filetype

import "strings"

// IconCategory selects which pictogram a UI should render for a file.
type IconCategory string

const (
	IconDocument     IconCategory = "document"
	IconPresentation IconCategory = "presentation"
	IconSpreadsheet  IconCategory = "spreadsheet"
	IconImage        IconCategory = "image"
	IconVideo        IconCategory = "video"
	IconAudio        IconCategory = "audio"
	IconArchive      IconCategory = "archive"
	IconCode         IconCategory = "code"
	IconShortcut     IconCategory = "shortcut"
	IconGeneric      IconCategory = "generic"
	IconUnknown      IconCategory = "unknown"
)

// Capability describes how an attachment of the given content type can be
// presented: which icon to use, the short label under the filename, and
// whether an inline image thumbnail is possible.
type Capability struct {
	Icon    IconCategory
	Label   string
	IsImage bool
}

type entry struct {
	icon  IconCategory
	label string
}

var exact = map[string]entry{
	// Documents
	"application/pdf":    {IconDocument, "PDF"},
	"application/msword": {IconDocument, "Word"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {IconDocument, "Word"},
	// Presentations
	"application/vnd.ms-powerpoint": {IconPresentation, "PowerPoint"},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {IconPresentation, "PowerPoint"},
	// Spreadsheets
	"X-IWORK-NUMBERS-SFFNUMBERS": {IconSpreadsheet, "Excel"},
	"application/vnd.ms-excel":   {IconSpreadsheet, "Excel"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {IconSpreadsheet, "Excel"},
	// Archives
	"application/zip":              {IconArchive, "Archive"},
	"application/x-7z-compressed":  {IconArchive, "Archive"},
	"application/x-rar-compressed": {IconArchive, "Archive"},
	"application/x-tar":            {IconArchive, "Archive"},
	"application/gzip":             {IconArchive, "Archive"},
	// Code
	"application/json":          {IconCode, "JSON"},
	"text/html":                 {IconCode, "HTML"},
	"text/css":                  {IconCode, "CSS"},
	"text/javascript":           {IconCode, "JavaScript"},
	"application/javascript":    {IconCode, "JavaScript"},
	"application/x-sh":          {IconCode, "Shell"},
	"application/x-python-code": {IconCode, "Python"},
	"application/x-httpd-php":   {IconCode, "PHP"},
	"text/x-c":                  {IconCode, "C"},
	"text/x-c++":                {IconCode, "C++"},
	"text/x-java-source":        {IconCode, "Java"},
	"text/x-go":                 {IconCode, "Go"},
	"text/x-rustsrc":            {IconCode, "Rust"},
	"text/x-typescript":         {IconCode, "TypeScript"},
	"text/x-markdown":           {IconCode, "Markdown"},
	"text/markdown":             {IconCode, "Markdown"},
	"text/x-yaml":               {IconCode, "YAML"},
	"text/x-shellscript":        {IconCode, "Shell"},
	// Shortcuts
	"application/x-ms-shortcut": {IconShortcut, "Shortcut"},
	"application/x-symlink":     {IconShortcut, "Shortcut"},
}

var imageExact = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true,
	"image/webp": true, "image/bmp": true, "image/svg+xml": true,
	"image/tiff": true, "image/heic": true,
}

var videoExact = map[string]bool{
	"video/mp4": true, "video/quicktime": true, "video/x-msvideo": true,
	"video/x-matroska": true, "video/webm": true, "video/ogg": true,
}

var audioExact = map[string]bool{
	"audio/mpeg": true, "audio/wav": true, "audio/ogg": true,
	"audio/mp4": true, "audio/webm": true, "audio/aac": true, "audio/flac": true,
}

// Classify maps a declared content type to its presentation capability.
// Total function: unrecognized and empty inputs fall through to the
// generic/unknown categories, never an error.
func Classify(contentType string) Capability {
	if contentType == "" {
		return Capability{Icon: IconUnknown, Label: "Unknown"}
	}

	if e, ok := exact[contentType]; ok {
		return Capability{Icon: e.icon, Label: e.label}
	}
	if imageExact[contentType] {
		return Capability{Icon: IconImage, Label: subtypeLabel(contentType, "Image"), IsImage: true}
	}
	if videoExact[contentType] {
		return Capability{Icon: IconVideo, Label: subtypeLabel(contentType, "Video")}
	}
	if audioExact[contentType] {
		return Capability{Icon: IconAudio, Label: subtypeLabel(contentType, "Audio")}
	}

	// Prefix heuristics on the top-level media type.
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return Capability{Icon: IconImage, Label: "Image", IsImage: true}
	case strings.HasPrefix(contentType, "video/"):
		return Capability{Icon: IconVideo, Label: "Video"}
	case strings.HasPrefix(contentType, "audio/"):
		return Capability{Icon: IconAudio, Label: "Audio"}
	case strings.HasPrefix(contentType, "text/"):
		return Capability{Icon: IconDocument, Label: subtypeLabel(contentType, "Text")}
	case strings.HasPrefix(contentType, "application/json"):
		return Capability{Icon: IconCode, Label: "JSON"}
	}

	// Archive substring heuristics.
	for _, marker := range []string{"zip", "tar", "rar", "7z"} {
		if strings.Contains(contentType, marker) {
			return Capability{Icon: IconArchive, Label: "Archive"}
		}
	}

	return Capability{Icon: IconGeneric, Label: subtypeLabel(contentType, "Unknown File")}
}

func subtypeLabel(contentType, fallback string) string {
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return strings.ToUpper(sub)
	}
	return fallback
}
