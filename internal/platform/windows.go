//go:build windows

package platform

import (
	"log"
	"path/filepath"
	"strings"
)

func init() {
	log.Println("stablechunk: Windows native mode activated (pure Go, fsnotify backend)")
}

// LongPathname ensures Windows paths handle the extended length prefix.
func LongPathname(path string) string {
	if len(path) < 2 || path[1] != ':' {
		return path
	}
	if filepath.IsAbs(path) && !strings.HasPrefix(path, `\\?\`) {
		return `\\?\` + filepath.Clean(path)
	}
	return path
}
