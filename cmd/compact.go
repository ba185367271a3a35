package cmd

import (
	"fmt"
	"os"
)

// Compact compacts the local store to reclaim unused space
func Compact(app *App) {
	defer app.Close()

	s := app.Store()
	path := s.Path()

	info, err := os.Stat(path)
	if err != nil {
		app.Fail(err)
	}
	sizeBefore := info.Size()

	if err := s.Compact(); err != nil {
		app.Fail(err)
	}

	info, err = os.Stat(path)
	if err != nil {
		app.Fail(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
