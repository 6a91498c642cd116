package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing, then initializes
// the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = shared.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("%s Config created at %s\n", styles.OK("✓"), configPath)
		r.writePlain("%s\n", styles.Help("Fill in credentials.spotify before running other commands."))
	} else {
		r.writePlain("%s Using config %s\n", styles.OK("✓"), configPath)
	}

	r.logger.Info("initializing database", "path", r.config.DataPath(r.config.Database.Path))
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.writePlain("%s Database ready at %s %s\n", styles.OK("✓"), r.config.DataPath(r.config.Database.Path),
		styles.Help(fmt.Sprintf("(schema v%d)", version)))
	r.writePlain("%s Data directory: %s\n", styles.OK("✓"), r.config.DataDir())
	return nil
}
