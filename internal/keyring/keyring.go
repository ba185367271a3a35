// Package keyring caches vault passwords in the OS keyring, keyed by the
// device id of the local store.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "statevault"

// ErrNotFound is returned when no password is stored for the device.
var ErrNotFound = errors.New("no password in keyring")

// SavePassword stores a password in the OS keyring
func SavePassword(deviceID string, password []byte) error {
	return keyring.Set(serviceName, deviceID, string(password))
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(deviceID string) ([]byte, error) {
	password, err := keyring.Get(serviceName, deviceID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(password), nil
}

// DeletePassword removes a password from the OS keyring
func DeletePassword(deviceID string) error {
	err := keyring.Delete(serviceName, deviceID)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(deviceID string) bool {
	_, err := keyring.Get(serviceName, deviceID)
	return err == nil
}
