// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

// mimeTypes maps file extensions to Content-Type values for static
// routes.
var mimeTypes = map[string]string{
	// Text and web
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".shtml":    "text/html",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".css":      "text/css",
	".csv":      "text/csv",
	".rtf":      "text/rtf",

	// Scripts and data
	".js":     "application/javascript",
	".mjs":    "application/javascript",
	".cjs":    "application/javascript",
	".json":   "application/json",
	".jsonld": "application/ld+json",
	".xml":    "application/xml",
	".xsd":    "application/xml",
	".yaml":   "application/yaml",
	".yml":    "application/yaml",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	// Audio and video
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",

	// Fonts
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",

	// Archives and binaries
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".7z":   "application/x-7z-compressed",
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
}

const defaultMIME = "application/octet-stream"

// mimeByExt resolves the Content-Type for a file extension.
func mimeByExt(ext string) string {
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return defaultMIME
}
