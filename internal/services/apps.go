package services

import (
	"os"
	"path/filepath"
	"sort"

	contextutils "miniappctl/internal/utils"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverApps returns the sorted names of the app directories directly under
// appsDir, skipping any whose name matches one of the exclude globs.
func DiscoverApps(appsDir string, excludes []string) ([]string, error) {
	entries, err := os.ReadDir(appsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contextutils.NewCodedErrorf(contextutils.ErrDirectoryNotFound, err, "apps directory %s does not exist", appsDir)
		}
		return nil, contextutils.NewCodedErrorf(contextutils.ErrFileRead, err, "failed to list %s", appsDir)
	}

	var apps []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		excluded, err := matchesAny(entry.Name(), excludes)
		if err != nil {
			return nil, err
		}
		if !excluded {
			apps = append(apps, entry.Name())
		}
	}
	sort.Strings(apps)
	return apps, nil
}

func matchesAny(name string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, contextutils.NewCodedErrorf(contextutils.ErrInvalidConfig, err, "bad exclude pattern %q", pattern)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// appPath joins an app-relative path onto the app directory
func appPath(appsDir, app string, rel ...string) string {
	return filepath.Join(append([]string{appsDir, app}, rel...)...)
}
