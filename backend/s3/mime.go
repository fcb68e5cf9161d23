package s3

import (
	"mime"
	"path"
	"strings"
)

// fallbackContentType is used when neither the table nor the platform's MIME registry knows the extension.
const fallbackContentType = "application/octet-stream"

// extensionTypes is the fixed extension-to-MIME table consulted before the platform registry, so the common
// web set resolves identically on every host.
var extensionTypes = map[string]string{
	".avi":  "video/x-msvideo",
	".bz2":  "application/x-bzip2",
	".css":  "text/css",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".gif":  "image/gif",
	".gz":   "application/x-gzip",
	".htm":  "text/html",
	".html": "text/html",
	".ico":  "image/x-icon",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".js":   "application/javascript",
	".json": "application/json",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".ppt":  "application/vnd.ms-powerpoint",
	".svg":  "image/svg+xml",
	".swf":  "application/x-shockwave-flash",
	".tar":  "application/x-tar",
	".tiff": "image/tiff",
	".txt":  "text/plain",
	".wav":  "audio/wav",
	".webm": "video/webm",
	".webp": "image/webp",
	".xls":  "application/vnd.ms-excel",
	".xml":  "application/xml",
	".zip":  "application/zip",
}

// detectContentType returns the MIME type for an object key or file name based on its extension, falling
// back to application/octet-stream.
func detectContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return fallbackContentType
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return fallbackContentType
}
