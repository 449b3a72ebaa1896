package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/dsaquest/contestscope/pkg/storage"
	"github.com/spf13/viper"
)

// dbFilePath resolves the SQLite path from --dbpath or digest.dbpath.
func dbFilePath() (string, error) {
	return utils.GetAbsDBPath(viper.GetString("digest.dbpath"))
}

func openDB() (*storage.DB, string, error) {
	path, err := dbFilePath()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, path, nil
}

// newSender mails through SMTP when smtp.host is set and only logs the
// digests otherwise.
func newSender(dryRun bool) (digest.Sender, error) {
	host := viper.GetString("smtp.host")
	if dryRun || host == "" {
		if !dryRun {
			utils.Log.Warn("smtp.host not set: digests will be logged, not sent.")
		}
		return digest.LogSender{Log: utils.ComponentLog("digest")}, nil
	}
	return digest.NewSMTPSender(digest.SMTPConfig{
		Host:     host,
		Port:     viper.GetInt("smtp.port"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		From:     viper.GetString("smtp.from"),
		Window:   viper.GetDuration("digest.window"),
	})
}
