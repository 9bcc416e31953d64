package fields

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tantralabs/derivuniverse/logger"
)

// WalkAndRun finds every underlying's universe-file directory under
// universesRoot (one or two levels deep, since future-option underlying
// keys nest an extra "<root>/<expiry>" segment) and runs the additional
// fields pass over each independently.
func WalkAndRun(universesRoot string) error {
	seen := map[string]bool{}
	var dirs []string

	err := filepath.WalkDir(universesRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".csv" {
			return nil
		}
		if _, perr := time.Parse("20060102", strings.TrimSuffix(d.Name(), ".csv")); perr != nil {
			return nil
		}
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		logger.Debugf("fields: running additional-fields pass over %s\n", dir)
		if err := Run(dir); err != nil {
			logger.Errorf("fields: %s: %v\n", dir, err)
		}
	}
	return nil
}
