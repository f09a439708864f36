// Package paginator drives an export: it requests the remote listing one
// page at a time, resolves a local file name for every asset, downloads the
// page with a bounded worker pool and only then moves to the next cursor.
//
// Items without a URL are skipped with a warning. A failing download never
// stops its page; a failing page request stops pagination and is reported
// in the run summary while every page already downloaded is kept.
package paginator
