package phptool

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/wpstarter/wpstarter/pkg/config"
)

// ResolvePharPath returns the phar to use for tool. The default target wins
// when it exists; otherwise the oldest "<name>-<version>.phar" next to it that
// satisfies the tool minimum version is used. When nothing is found the
// default target is returned, with found false, ready to be downloaded.
func ResolvePharPath(tool PhpTool, paths *config.Paths) (path string, found bool) {
	target := tool.PharTarget(paths)
	if isFile(target) {
		return target, true
	}

	dir := filepath.Dir(target)
	prefix := tool.PharName() + "-"
	matches, _ := filepath.Glob(filepath.Join(dir, prefix+"*.phar"))

	minVersion, err := version.NewVersion(tool.MinVersion())
	if err != nil {
		return target, false
	}

	type candidate struct {
		path string
		v    *version.Version
	}
	var candidates []candidate
	for _, m := range matches {
		raw := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".phar")
		v, err := version.NewVersion(raw)
		if err != nil || v.LessThan(minVersion) || !isFile(m) {
			continue
		}
		candidates = append(candidates, candidate{path: m, v: v})
	}
	if len(candidates) == 0 {
		return target, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].v.LessThan(candidates[j].v) })
	return candidates[0].path, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
