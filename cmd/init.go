package cmd

import (
	"fmt"

	"github.com/illarion/statevault/internal/storage"
)

// Init creates the local store and assigns this device an id
func Init(app *App) {
	defer app.Close()

	s, err := storage.Open(app.Config.StorePath)
	if err != nil {
		app.Fail(err)
	}
	app.store = s

	ok, err := s.IsInitialized()
	if err != nil {
		app.Fail(err)
	}
	if ok {
		fmt.Printf("Store %s is already initialized\n", app.Config.StorePath)
		return
	}

	if err := s.Initialize(); err != nil {
		app.Fail(err)
	}
	deviceID, err := s.GetOrCreateDeviceID()
	if err != nil {
		app.Fail(err)
	}

	fmt.Printf("✓ Initialized %s (device %s)\n", app.Config.StorePath, deviceID)
}
