package pathutil

import (
	homedir "github.com/mitchellh/go-homedir"
)

// HomeDir returns the home directory of the current user.
func HomeDir() (string, error) {
	return homedir.Dir()
}

// Expand expands a leading ~ in path to the home directory.
func Expand(path string) (string, error) {
	return homedir.Expand(path)
}
