package main

import (
	"io"
	"os"
)

// readFileArg reads path, or stdin when path is "-".
func readFileArg(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
