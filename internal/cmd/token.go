package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/furfur/central/internal/auth"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/log"
	"github.com/gofrs/uuid/v5"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var ErrAuthID = errors.New("invalid token id")

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Manage admin api tokens",
	}
}

// withAuthentication connects to the configured database and hands fn an Authentication service.
func withAuthentication(ctx context.Context, fn func(auth.Authentication) error) error {
	conf, errConfig := config.Read(cfgFile)
	if errConfig != nil {
		return errConfig
	}

	conn := database.New(conf.Database.DSN, conf.Database.AutoMigrate, conf.Database.LogQueries)
	if errConnect := conn.Connect(ctx); errConnect != nil {
		return errConnect
	}

	defer log.Closer(conn)

	return fn(auth.NewAuthentication(auth.NewRepository(conn)))
}

func tokenCreateCmd() *cobra.Command {
	var name string

	command := &cobra.Command{
		Use:   "create",
		Short: "Create a new api token. The token is only shown once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuthentication(cmd.Context(), func(authentication auth.Authentication) error {
				created, token, errCreate := authentication.Create(cmd.Context(), name)
				if errCreate != nil {
					return errCreate
				}

				_, _ = fmt.Fprintf(os.Stdout, "id:    %s\nname:  %s\ntoken: %s\n", created.AuthID, created.Name, token)

				return nil
			})
		},
	}

	command.Flags().StringVarP(&name, "name", "n", "", "Name describing the token holder")
	_ = command.MarkFlagRequired("name")

	return command
}

func tokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List issued api tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuthentication(cmd.Context(), func(authentication auth.Authentication) error {
				tokens, errList := authentication.List(cmd.Context())
				if errList != nil {
					return errList
				}

				rows := make([][]string, len(tokens))
				for idx, token := range tokens {
					rows[idx] = []string{token.AuthID.String(), token.Name, token.CreatedOn.Format(time.DateTime)}
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.Header("ID", "Name", "Created")

				if errBulk := table.Bulk(rows); errBulk != nil {
					return errBulk
				}

				return table.Render()
			})
		},
	}
}

func tokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an api token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authID, errID := uuid.FromString(args[0])
			if errID != nil {
				return errors.Join(errID, ErrAuthID)
			}

			return withAuthentication(cmd.Context(), func(authentication auth.Authentication) error {
				return authentication.Delete(cmd.Context(), authID)
			})
		},
	}
}
