package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newCrewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "Manage crews and their credentials",
	}

	cmd.AddCommand(newCrewListCmd())
	cmd.AddCommand(newCrewSetPasswordCmd())
	return cmd
}

func newCrewListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrewList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	return cmd
}

func runCrewList(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	var crews []models.Crew
	if err := gormDB.Order("name ASC").Find(&crews).Error; err != nil {
		return fmt.Errorf("crew: list: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"ID", "Nome", "Login", "Papel", "Região", "Ativa"})
	for _, crew := range crews {
		active := "sim"
		if !crew.Active {
			active = "não"
		}
		tw.AppendRow(table.Row{crew.ID, crew.Name, crew.Login, crew.Role, crew.Region, active})
	}
	tw.Render()
	return nil
}

func newCrewSetPasswordCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set-password <login>",
		Short: "Set a crew's password",
		Long:  "Prompts for a new password (no echo) and stores its hash for the given crew login.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrewSetPassword(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	return cmd
}

func runCrewSetPassword(cmd *cobra.Command, configPath, login string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	var crew models.Crew
	err = gormDB.Where("login = ?", login).First(&crew).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("crew: login %q not found", login)
	}
	if err != nil {
		return fmt.Errorf("crew: lookup %q: %w", login, err)
	}

	password, err := promptPassword(out, "New password: ")
	if err != nil {
		return err
	}
	if len(password) < 6 {
		return fmt.Errorf("crew: password must be at least 6 characters")
	}
	confirm, err := promptPassword(out, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("crew: passwords do not match")
	}

	crew.PasswordHash = models.HashPassword(password)
	if err := gormDB.Save(&crew).Error; err != nil {
		return fmt.Errorf("crew: save %q: %w", login, err)
	}
	fmt.Fprintf(out, "Password updated for %s (%s)\n", crew.Name, crew.Login)
	return nil
}

// promptPassword reads a credential from the terminal without echo.
func promptPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("crew: read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
