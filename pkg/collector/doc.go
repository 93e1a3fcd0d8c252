// Package collector turns a work area on disk into a publishable item tree.
//
// Collect performs a one-shot scan; Watcher uses fsnotify to emit a fresh
// session item whenever a publishable file settles in a drop directory.
package collector
