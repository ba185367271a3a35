package cmd

import (
	"errors"
	"fmt"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/envelope"
	"github.com/illarion/statevault/internal/keyring"
	"github.com/illarion/statevault/internal/prompt"
)

// KeyringSave saves the vault password to the OS keyring
func KeyringSave(app *App) {
	defer app.Close()

	deviceID, err := app.Store().GetOrCreateDeviceID()
	if err != nil {
		app.Fail(err)
	}

	password, err := prompt.ReadPasswordConfirm()
	if err != nil {
		app.Fail(err)
	}
	defer crypto.ClearBytes(password)

	if len(password) < envelope.MinPasswordLength {
		app.Fail(envelope.ErrPasswordTooShort)
	}

	if err := keyring.SavePassword(deviceID, password); err != nil {
		app.Fail(fmt.Errorf("failed to save to keyring: %w", err))
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the vault password from the OS keyring
func KeyringDelete(app *App) {
	defer app.Close()

	deviceID, err := app.Store().GetDeviceID()
	if err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(deviceID); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Println("No password stored in keyring")
			return
		}
		app.Fail(err)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus(app *App) {
	defer app.Close()

	deviceID, err := app.Store().GetDeviceID()
	if err != nil {
		fmt.Println("Password: not stored")
		return
	}

	if keyring.HasPassword(deviceID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
