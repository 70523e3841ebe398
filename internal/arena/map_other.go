//go:build !unix

package arena

// mapAnon falls back to the Go heap when mmap is not available.
func mapAnon(size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	return data, func() error { return nil }, nil
}
