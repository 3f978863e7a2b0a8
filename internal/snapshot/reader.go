package snapshot

import (
	"DelayBench/internal/model"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

var runFilePattern = regexp.MustCompile(`^statistics_run_(\d+)\.json$`)

// ReadJSON decodes the document at path into v.
// Bare Infinity, -Infinity and NaN tokens, as emitted by older producers,
// are accepted and read as the corresponding sentinel floats.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}

	if err := json.Unmarshal(quoteNonFinite(data), v); err != nil {
		return fmt.Errorf("failed to decode '%s': %w", path, err)
	}
	return nil
}

var nonFiniteTokens = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// quoteNonFinite rewrites bare non-finite tokens outside string literals into
// quoted strings. data is returned unchanged when it holds none.
func quoteNonFinite(data []byte) []byte {
	var out []byte
	inString, escaped := false, false
	last := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		for _, tok := range nonFiniteTokens {
			if !bytes.HasPrefix(data[i:], tok) {
				continue
			}
			out = append(out, data[last:i]...)
			out = append(out, '"')
			out = append(out, tok...)
			out = append(out, '"')
			i += len(tok) - 1
			last = i + 1
			break
		}
	}
	if out == nil {
		return data
	}
	return append(out, data[last:]...)
}

// ReadRunStatistics loads one run statistics document.
func ReadRunStatistics(path string) (*model.RunStatistics, error) {
	var stats model.RunStatistics
	if err := ReadJSON(path, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RunFile is a run statistics document found in a session directory.
type RunFile struct {
	Run  int
	Path string
}

// ListRunFiles returns the run statistics documents in dir ordered by run number.
func ListRunFiles(dir string) ([]RunFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read statistics directory: %w", err)
	}

	var files []RunFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := runFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		run, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, RunFile{Run: run, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Run < files[j].Run })
	return files, nil
}
