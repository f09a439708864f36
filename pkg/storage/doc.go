// Package storage owns everything shopfiles writes to disk during a run:
// the page_<N> working tree, atomic file writes and the failure log.
//
// A file only ever appears at its final path once fully written:
//
//	dir, _ := tree.PageDir(1)
//	n, err := storage.WriteAtomic(filepath.Join(dir, "report.pdf"), resp.Body)
//
// Failed downloads are appended to the failure log, one line each:
//
//	https://cdn.shopify.com/s/files/report.pdf | HTTP 500
package storage
