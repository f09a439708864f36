// Package export runs a complete Shopify Files export.
//
// A Runner creates the work directory, pages through the store's files,
// downloading each page into page_<N>/ under the work directory, zips the
// tree into the configured archive and writes a JSON manifest beside it.
// The work directory is removed on every path out of Run.
//
// Individual download failures are appended to the failure log and never
// fail the run. A page request that fails ends pagination early; what was
// downloaded so far is still archived. Only setup and archive errors are
// returned from Run.
package export
