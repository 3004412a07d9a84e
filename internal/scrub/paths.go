// SPDX-License-Identifier: EPL-2.0

package scrub

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	captureSuffix = "_rerecord.wav"
	finalSuffix   = "_clean.wav"
)

// Paths are the files a job writes next to its source.
type Paths struct {
	// Capture holds the loopback recording until the job ends.
	Capture string
	Final   string
}

// PathsFor derives the output paths of source: "dir/X.mp3" yields
// "dir/X_rerecord.wav" and "dir/X_clean.wav".
func PathsFor(source string) Paths {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	return Paths{
		Capture: stem + captureSuffix,
		Final:   stem + finalSuffix,
	}
}

// Discover returns the files to process. Explicit args are kept in order when
// their extension is one of exts. Without args, dir is scanned for regular
// files with a matching extension, skipping files this tool wrote. Extension
// matching ignores case.
func Discover(dir string, args, exts []string) ([]string, error) {
	if len(args) > 0 {
		files := make([]string, 0, len(args))
		for _, a := range args {
			if hasExt(a, exts) {
				files = append(files, a)
			}
		}
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !hasExt(name, exts) || generated(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	slices.Sort(files)
	return files, nil
}

func hasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func generated(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, captureSuffix) || strings.HasSuffix(lower, finalSuffix)
}
