// Package fileutil handles path decomposition and the file operations the
// publish plugins share: folder creation, permission-preserving copies, and
// tolerant deletes.
//
// SplitPath breaks a path into folder, filename, prefix, extension, and a
// version number parsed from tokens like "v3" or a trailing "003" in the
// filename.
package fileutil
