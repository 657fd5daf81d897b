package utils

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// Raster formats the decoder understands. jp2/j2k go through the
// wavelet decoder, everything else through the generic raster path.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".bmp":  {},
	".jp2":  {},
	".j2k":  {},
}

// Container formats pkg/source can open.
var containerExtensions = map[string]struct{}{
	".zip": {},
	".cbz": {},
	".7z":  {},
	".rar": {},
	".cbr": {},
}

// IsImageFile reports whether name has a supported raster extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IsContainerFile reports whether name has a supported archive extension.
func IsContainerFile(name string) bool {
	_, ok := containerExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// NormalizePath converts archive entry names to forward slashes. Some
// archivers store Windows-style separators.
func NormalizePath(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// SortNatural orders names so that numeric runs compare by value:
// page2 sorts before page10.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return natural.Less(names[i], names[j])
	})
}
