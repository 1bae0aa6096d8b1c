package filesystem

import (
	"path/filepath"
	"strings"
)

// binaryExtensions lists file extensions treated as binary: loaded as raw
// bytes, never content-searched.
var binaryExtensions = map[string]bool{
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".webp": true, ".ico": true, ".tiff": true, ".heic": true,
	// audio
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true, ".m4a": true,
	// video
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
	// archives
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true,
	// executables and objects
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".o": true, ".a": true, ".class": true, ".wasm": true,
	// fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// documents and databases
	".pdf": true, ".sqlite": true, ".db": true, ".parquet": true,
}

// isBinaryPath reports whether a path looks binary, by extension.
func isBinaryPath(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
