package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("Benchdash", GetVersion())

	lookupBackend := config.Storage.Type
	if lookupBackend == "file" {
		lookupBackend = "file:" + config.Storage.File.LookupPath
	}

	schedule := config.Attributes.AutoReconcileSchedule
	if schedule == "" {
		schedule = "disabled"
	}

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Str("lookup", lookupBackend).
		Str("auto_reconcile", schedule).
		Bool("auto_save", config.Attributes.AutoSave).
		Msg("Benchdash starting")
}
