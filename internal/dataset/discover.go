// Package dataset finds and loads series exported as CSV files named
// <prefix>.<idx>.csv, where prefix may end in a numeric cut suffix
// (usdc_weth_18000000.0.csv belongs to dataset usdc_weth).
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when no dataset matches a name.
var ErrNotFound = errors.New("dataset not found")

const fileExt = ".csv"

// File is one part of a dataset.
type File struct {
	Path  string
	Index int
}

// Dataset groups the files sharing a prefix.
type Dataset struct {
	Name   string // prefix without the cut suffix
	Prefix string
	Cut    int64 // numeric prefix suffix, -1 when absent
	Files  []File
}

// MaxIndex returns the highest file index.
func (d Dataset) MaxIndex() int {
	hi := -1
	for _, f := range d.Files {
		if f.Index > hi {
			hi = f.Index
		}
	}
	return hi
}

// Discover walks root for dataset files. Files whose name lacks a numeric
// index are ignored. Datasets are sorted by (name, prefix) and files by index.
func Discover(root string) ([]Dataset, error) {
	byPrefix := make(map[string]*Dataset)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			return nil
		}
		prefix, idx, ok := splitName(d.Name())
		if !ok {
			return nil
		}
		ds, exists := byPrefix[prefix]
		if !exists {
			name, cut := stripCut(prefix)
			ds = &Dataset{Name: name, Prefix: prefix, Cut: cut}
			byPrefix[prefix] = ds
		}
		ds.Files = append(ds.Files, File{Path: path, Index: idx})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover datasets in %s: %w", root, err)
	}

	result := make([]Dataset, 0, len(byPrefix))
	for _, ds := range byPrefix {
		sort.Slice(ds.Files, func(i, j int) bool { return ds.Files[i].Index < ds.Files[j].Index })
		result = append(result, *ds)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Prefix < result[j].Prefix
	})
	return result, nil
}

// Select returns the file paths of every dataset whose name or prefix
// equals name, in dataset then index order.
func Select(datasets []Dataset, name string) ([]string, error) {
	var paths []string
	for _, ds := range datasets {
		if ds.Name != name && ds.Prefix != name {
			continue
		}
		for _, f := range ds.Files {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return paths, nil
}

// splitName parses <prefix>.<idx>.csv.
func splitName(base string) (string, int, bool) {
	parts := strings.Split(strings.TrimSuffix(base, fileExt), ".")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], idx, true
}

func stripCut(prefix string) (string, int64) {
	i := strings.LastIndex(prefix, "_")
	if i <= 0 {
		return prefix, -1
	}
	cut, err := strconv.ParseInt(prefix[i+1:], 10, 64)
	if err != nil {
		return prefix, -1
	}
	return prefix[:i], cut
}
