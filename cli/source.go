package main

import (
	"fmt"
	"io"
	"os"
)

// readSource reads a program from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", &CLIError{Type: "input", Message: "Cannot read program from stdin", Details: err.Error()}
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &CLIError{
			Type:    "input",
			Message: fmt.Sprintf("Cannot read %s", path),
			Details: err.Error(),
			Hint:    "Pass a file path, or - to read the program from stdin",
		}
	}
	return string(data), nil
}
