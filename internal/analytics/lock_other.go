//go:build !unix

package analytics

// lockFile is a no-op where flock is unavailable; the store's mutex still
// serializes writers inside one process.
func lockFile(path string) (func(), error) {
	return func() {}, nil
}
