// Package filesystem provides a virtualized abstraction layer for all filesystem operations.
//
// It utilizes the afero library to allow seamless switching between OS-level and in-memory filesystem backends.
package filesystem

import "github.com/spf13/afero"

var backend = afero.Afero{Fs: afero.NewOsFs()}

// API returns the active afero.Afero instance for filesystem interaction.
func API() afero.Afero {
	return backend
}

// SetOsFs restores the filesystem backend to the native operating system implementation.
func SetOsFs() {
	backend = afero.Afero{Fs: afero.NewOsFs()}
}

// SetMemMapFs initializes a volatile in-memory filesystem backend for unit testing.
func SetMemMapFs() {
	backend = afero.Afero{Fs: afero.NewMemMapFs()}
}

// IsReadableFile reports whether path names an existing regular file that can be opened for reading.
// Media paths are validated through here before any backend sees them.
func IsReadableFile(path string) bool {
	if path == "" {
		return false
	}

	info, err := backend.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	f, err := backend.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
