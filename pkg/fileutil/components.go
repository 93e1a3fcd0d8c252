package fileutil

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Components holds the pieces of a versioned file path. For
// "/proj/shot010/fx/smoke.v003.abc":
//
//	Folder:    "/proj/shot010/fx"
//	Filename:  "smoke.v003.abc"
//	Prefix:    "smoke.v003"
//	Extension: "abc"
//	Version:   3
type Components struct {
	Folder    string
	Filename  string
	Prefix    string
	Extension string
	Version   int
}

var versionTokenRe = regexp.MustCompile(`(?i)(?:^|[._-])v(\d+)(?:$|[._-])`)

// SplitPath extracts the components of a file path. Version is 0 when no
// version token is present in the filename.
func SplitPath(path string) Components {
	folder := filepath.Dir(path)
	filename := filepath.Base(path)

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	prefix := strings.TrimSuffix(filename, filepath.Ext(filename))

	return Components{
		Folder:    folder,
		Filename:  filename,
		Prefix:    prefix,
		Extension: ext,
		Version:   parseVersion(prefix),
	}
}

// parseVersion finds a version number in a filename prefix. It prefers an
// explicit "v###" token ("smoke.v003"), falling back to a trailing all-digit
// token ("smoke.0003").
func parseVersion(prefix string) int {
	if m := versionTokenRe.FindStringSubmatch(prefix); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}

	fields := strings.FieldsFunc(prefix, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if v, err := strconv.Atoi(last); err == nil {
			return v
		}
	}
	return 0
}

// PublishName returns the display name used when registering a publish:
// the filename prefix joined with its extension ("smoke.v003.abc" keeps
// "smoke.v003" + "abc").
func PublishName(path string) string {
	c := SplitPath(path)
	if c.Extension == "" {
		return c.Prefix
	}
	return c.Prefix + "." + c.Extension
}
