package ingest

import (
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

// Type identifiers understood by provider negotiation.
const (
	TypeURL             = "public.url"
	TypeFileURL         = "public.file-url"
	TypePlainText       = "public.plain-text"
	TypeUTF8PlainText   = "public.utf8-plain-text"
	TypePNG             = "public.png"
	TypeData            = "public.data"
	TypeLivePhoto       = "com.apple.live-photo"
	TypeLivePhotoBundle = "com.apple.live-photo-bundle"
)

// Live Photos have no faithful single-file form, so they are refused even
// though they satisfy the generic data filter.
var excludedTypes = map[string]bool{
	TypeLivePhoto:                         true,
	TypeLivePhotoBundle:                   true,
	"com.apple.private.live-photo-bundle": true,
}

const livePhotoBundleExt = ".pvt"

var mimeTypeIDs = map[string]string{
	"image/png":        TypePNG,
	"image/jpeg":       "public.jpeg",
	"image/gif":        "com.compuserve.gif",
	"image/heic":       "public.heic",
	"image/webp":       "org.webmproject.webp",
	"image/tiff":       "public.tiff",
	"image/bmp":        "com.microsoft.bmp",
	"video/mp4":        "public.mpeg-4",
	"video/quicktime":  "com.apple.quicktime-movie",
	"audio/mpeg":       "public.mp3",
	"audio/x-m4a":      "com.apple.m4a-audio",
	"audio/mp4":        "public.mpeg-4-audio",
	"audio/wav":        "com.microsoft.waveform-audio",
	"audio/aac":        "public.aac-audio",
	"application/pdf":  "com.adobe.pdf",
	"application/zip":  "public.zip-archive",
	"application/json": "public.json",
	"text/html":        "public.html",
	"text/plain":       TypePlainText,
}

type contentKind struct {
	typeID  string
	display models.DisplayType
}

// sniff detects the content type from the leading bytes and walks up the
// mimetype hierarchy until a known identifier is found.
func sniff(data []byte) contentKind {
	detected := mimetype.Detect(data)

	kind := contentKind{typeID: TypeData, display: models.DisplayFile}
	for m := detected; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if id, ok := mimeTypeIDs[base]; ok {
			kind.typeID = id
			break
		}
	}

	top, _, _ := strings.Cut(detected.String(), "/")
	switch top {
	case "image":
		kind.display = models.DisplayImage
	case "video":
		kind.display = models.DisplayVideo
	case "audio":
		kind.display = models.DisplayAudio
	}
	return kind
}

func isLivePhotoBundle(path string) bool {
	return strings.EqualFold(filepath.Ext(path), livePhotoBundleExt)
}
