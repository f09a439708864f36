package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// PageDirPrefix prefixes every per-page directory under the work root
const PageDirPrefix = "page_"

// Tree is the run's working directory: one page_<N> subdirectory per page.
// The root may hold other content; the tree only touches its page directories.
type Tree struct {
	root  string
	pages map[int]string
	mu    sync.Mutex
}

// NewTree creates the work root if needed
func NewTree(root string) (*Tree, error) {
	if root == "" {
		return nil, fmt.Errorf("work root must not be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}
	return &Tree{root: root, pages: make(map[int]string)}, nil
}

// Root returns the work root path
func (t *Tree) Root() string {
	return t.root
}

// PageDir returns page_<n> under the root, creating it on first use
func (t *Tree) PageDir(n int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dir, ok := t.pages[n]; ok {
		return dir, nil
	}

	dir := filepath.Join(t.root, PageDirPrefix+strconv.Itoa(n))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create page directory: %w", err)
	}
	t.pages[n] = dir
	return dir, nil
}

// Pages returns the page numbers created so far in ascending order
func (t *Tree) Pages() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]int, 0, len(t.pages))
	for n := range t.pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Dirs returns the page directories created so far, ordered by page
func (t *Tree) Dirs() []string {
	pages := t.Pages()

	t.mu.Lock()
	defer t.mu.Unlock()
	dirs := make([]string, 0, len(pages))
	for _, n := range pages {
		dirs = append(dirs, t.pages[n])
	}
	return dirs
}

// Remove deletes the page directories this tree created, then the root if
// nothing else is left in it. Anything the run did not create stays.
func (t *Tree) Remove() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for n, dir := range t.pages {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", dir, err))
			continue
		}
		delete(t.pages, n)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	entries, err := os.ReadDir(t.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read work root: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(t.root); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove work root: %w", err)
	}
	return nil
}

// ClearStale removes page_<N> directories left under the root by an earlier
// run that never reached cleanup. Other entries are left alone.
func (t *Tree) ClearStale() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read work root: %w", err)
	}

	var removed []string
	for _, e := range entries {
		n := pageNumber(e.Name())
		if !e.IsDir() || n < 1 {
			continue
		}
		if _, ok := t.pages[n]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(t.root, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove stale %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// pageNumber parses page_<N>, returning -1 for any other name
func pageNumber(name string) int {
	if !strings.HasPrefix(name, PageDirPrefix) {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, PageDirPrefix))
	if err != nil || strconv.Itoa(n) != strings.TrimPrefix(name, PageDirPrefix) {
		return -1
	}
	return n
}
