package contract

import (
	"mime"
	"path"
	"strings"
)

// skippableExtensions are binary or generated formats whose history carries no signal.
var skippableExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".pdf": {}, ".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	".mp4": {}, ".mp3": {}, ".mov": {}, ".avi": {},
	".exe": {}, ".dll": {}, ".so": {}, ".o": {}, ".a": {}, ".lib": {}, ".bin": {}, ".dat": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".7z": {}, ".rar": {}, ".iso": {},
	".dmg": {}, ".pkg": {}, ".deb": {}, ".rpm": {}, ".msi": {},
	".class": {}, ".jar": {}, ".war": {}, ".pyc": {}, ".pyo": {},
	".swp": {}, ".lock": {}, ".bak": {}, ".tmp": {},
}

// sourceExtensions are never skipped even when the platform MIME table maps them
// to a media type (".ts" is registered as video/mp2t on many systems).
var sourceExtensions = map[string]struct{}{
	".ts": {}, ".tsx": {}, ".mts": {}, ".cts": {}, ".js": {}, ".jsx": {},
	".go": {}, ".py": {}, ".rs": {}, ".java": {}, ".c": {}, ".h": {}, ".cpp": {},
	".rb": {}, ".php": {}, ".sql": {}, ".sh": {},
	".yaml": {}, ".yml": {}, ".json": {}, ".toml": {}, ".md": {}, ".txt": {},
}

var skippableMIMEPrefixes = []string{
	"image/",
	"video/",
	"audio/",
	"font/",
	"application/pdf",
	"application/x-executable",
	"application/x-sharedlib",
	"application/x-object",
	"application/x-archive",
	"application/zip",
	"application/x-tar",
	"application/gzip",
}

// IsSkippable reports whether a file should be excluded from commit-stat, file and
// blame extraction. Extension matching is case-insensitive.
func IsSkippable(filePath string) bool {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	if ext == "" || ext == base {
		// No extension, or a dotfile such as .gitignore
		return false
	}
	if _, ok := sourceExtensions[ext]; ok {
		return false
	}
	if _, ok := skippableExtensions[ext]; ok {
		return true
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return false
	}
	for _, prefix := range skippableMIMEPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
