package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/easelhq/easel/errors"
)

// Save writes the configuration to the given path as TOML, keeping rotating
// backups (.back1, .back2, .back3) of the previous contents.
func Save(config *Config, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "backup config")
	}

	if watcher := GetGlobalWatcher(); watcher != nil {
		watcher.MarkOwnWrite()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrapf(err, "write config to %s", configPath)
	}

	return nil
}

// createBackup creates rotating backups before modifying the config file
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Rotate: .back3 dropped, .back2 -> .back3, .back1 -> .back2, current -> .back1
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove oldest backup")
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "create .back1")
	}

	return nil
}
