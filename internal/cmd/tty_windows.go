//go:build windows

package cmd

import (
	"os"
)

// openTTY opens the console input; stdin and stdout carry data.
func openTTY() (*os.File, error) {
	return os.OpenFile("CONIN$", os.O_RDWR, 0)
}

// checkTermWidth is a no-op on Windows; the picker adapts to any width.
func checkTermWidth(*os.File) error {
	return nil
}
