package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/illarion/statevault/internal/keyring"
	"github.com/illarion/statevault/internal/payload"
)

// Status shows the local store without requiring a password
func Status(app *App) {
	defer app.Close()

	if _, err := os.Stat(app.Config.StorePath); os.IsNotExist(err) {
		fmt.Printf("No store found at %s\n", app.Config.StorePath)
		fmt.Println("Run 'statevault init' to create one")
		return
	}

	s := app.Store()
	reg := payload.DefaultRegistry()

	deviceID, err := s.GetDeviceID()
	if err != nil {
		app.Fail(err)
	}
	keys, err := s.Keys()
	if err != nil {
		app.Fail(err)
	}

	fmt.Printf("Store:     %s\n", s.Path())
	fmt.Printf("Device:    %s\n", deviceID)
	if app.Config.Keyring.Enabled {
		if keyring.HasPassword(deviceID) {
			fmt.Println("Password:  stored in keyring")
		} else {
			fmt.Println("Password:  not stored")
		}
	}
	fmt.Printf("Transport: %s\n", app.Config.Transport.Kind)

	modified, err := s.GetModified()
	if err != nil {
		app.Fail(err)
	}
	fmt.Printf("Modified:  %s\n", formatTime(modified))

	lastExport, err := s.GetLastExport()
	if err != nil {
		app.Fail(err)
	}
	fmt.Printf("Exported:  %s\n", formatTime(lastExport))

	fmt.Println("\nRecords:")
	if len(keys) == 0 {
		fmt.Println("  (none)")
	}
	for _, key := range keys {
		value, _, err := s.Get(key)
		if err != nil {
			app.Fail(err)
		}
		kind := "unknown"
		if spec, ok := reg.Lookup(key); ok {
			kind = spec.Kind.String()
			if spec.LocalOnly {
				kind += ", local only"
			}
		}
		fmt.Printf("  %s (%s, %s)\n", key, kind, formatSize(int64(len(value))))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
