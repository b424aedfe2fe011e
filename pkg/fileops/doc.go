// Package fileops holds the small set of filesystem checks applied to paths
// that arrive from tool arguments: home-directory expansion, directory
// resolution for git lookups, and size-bounded reads for source files handed
// to the analyzer.
//
// # Example
//
//	dir, err := fileops.ResolveDirectory("~/src/service")
//	if err != nil {
//	    return err
//	}
//	content, err := fileops.ReadFileLimited(filepath.Join(dir, "main.go"), fileops.MaxSourceFileSize)
package fileops
