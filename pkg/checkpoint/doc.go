// Package checkpoint lets an interrupted export continue from the page after
// the last one it finished.
//
// One JSON file is kept per store domain, by default under
//   - Linux: $XDG_DATA_HOME/shopfiles/checkpoints/ (~/.local/share/...)
//   - macOS: ~/Library/Application Support/shopfiles/checkpoints/
//   - Windows: %APPDATA%/shopfiles/checkpoints/
//
// The file is rewritten atomically after every page and removed once the
// listing has been read to the end.
package checkpoint
