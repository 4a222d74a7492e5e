package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sandeepstele/guruheal-agent/pkg/flags"
)

// NewMigrateCommand initializes or updates the database schema without
// starting the server. Useful for running migrations as a deploy step.
func NewMigrateCommand() *cobra.Command {
	dbFlags := flags.NewPostgresDatabaseFlags()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Initialize or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := dbFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			if err := dbc.UpdateSchema(); err != nil {
				return errors.WithMessage(err, "couldn't migrate database schema")
			}

			log.Info("database schema is up to date")
			return nil
		},
	}

	dbFlags.BindFlags(cmd.Flags())
	return cmd
}
