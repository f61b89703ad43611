package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/database"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
)

func newUsersCommand() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage approved accounts",
	}

	var email, name, role string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account without going through the access-request queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApplication()
			if err != nil {
				return err
			}
			defer app.close()

			user, err := app.users.Create(cmd.Context(), users.CreateInput{Email: email, DisplayName: name, Role: role})
			if err != nil {
				return err
			}
			app.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", user.ID, user.Email, user.DisplayName, user.Role)
			return err
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "Account email (must belong to the allowed domain)")
	addCmd.Flags().StringVar(&name, "name", "", "Display name (derived from the email when empty)")
	addCmd.Flags().StringVar(&role, "role", auth.RoleUser, "Account role (user, admin)")
	_ = addCmd.MarkFlagRequired("email")

	usersCmd.AddCommand(addCmd)
	return usersCmd
}

func newSeedCommand() *cobra.Command {
	var samples bool
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the starter categories, tags and optional sample references",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApplication()
			if err != nil {
				return err
			}
			defer app.close()

			report, err := database.Seed(cmd.Context(), app.db, database.SeedOptions{SampleReferences: samples}, app.logger)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "categories=%d tags=%d references=%d\n", report.Categories, report.Tags, report.References)
			return err
		},
	}
	seedCmd.Flags().BoolVar(&samples, "samples", false, "Also insert sample references into an empty library")
	return seedCmd
}

func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fetch preview images for references without a thumbnail",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApplication()
			if err != nil {
				return err
			}
			defer app.close()

			report, err := app.backfiller.Run(cmd.Context(), app.catalog)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated %d of %d references\n", report.Updated, report.Total)
			return err
		},
	}
}
