package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/view"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newOSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "os",
		Short: "Browse imported work orders",
	}

	cmd.AddCommand(newOSListCmd())
	cmd.AddCommand(newOSShowCmd())
	return cmd
}

func newOSListCmd() *cobra.Command {
	var configPath string
	var region string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders with their derived status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOSList(cmd, configPath, region)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	cmd.Flags().StringVarP(&region, "region", "r", "", "only show orders in this region")
	return cmd
}

func runOSList(cmd *cobra.Command, configPath, region string) error {
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

	orders, err := view.List(gormDB)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"ID", "Local", "Região", "Programada", "Status", "Caixas", "Lanças"})
	shown := 0
	for _, os := range orders {
		if region != "" && !strings.EqualFold(os.Region, region) {
			continue
		}
		shown++
		tw.AppendRow(table.Row{
			os.ID,
			os.Location,
			os.Region,
			os.ScheduledDate,
			os.Badge.Label,
			fmt.Sprintf("%d/%d", os.Aggregates.CaixaDone, os.Aggregates.CaixaTotal),
			fmt.Sprintf("%d/%d", os.Aggregates.LancaDone, os.Aggregates.LancaTotal),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d OS", shown)})
	tw.Render()
	return nil
}

func newOSShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work order in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOSShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	return cmd
}

func runOSShow(cmd *cobra.Command, configPath, osID string) error {
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

	os, err := view.Get(gormDB, osID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("os: %s not found", osID)
	}
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendRow(table.Row{"ID", os.ID})
	tw.AppendRow(table.Row{"Código", os.Code})
	tw.AppendRow(table.Row{"Status", fmt.Sprintf("%s [%s]", os.Badge.Label, os.Badge.Severity)})
	tw.AppendRow(table.Row{"Local", os.Location})
	tw.AppendRow(table.Row{"Região", os.Region})
	tw.AppendRow(table.Row{"Entrada", os.EntryDate})
	tw.AppendRow(table.Row{"Programada", os.ScheduledDate})
	tw.AppendRow(table.Row{"Conclusão", os.CompletionDate})
	tw.AppendRow(table.Row{"Valor", fmt.Sprintf("R$ %.2f", os.Value)})
	tw.AppendRow(table.Row{"Caixas", fmt.Sprintf("%d/%d concluídas, %d NOK", os.Aggregates.CaixaDone, os.Aggregates.CaixaTotal, os.Aggregates.CaixaNOK)})
	tw.AppendRow(table.Row{"Lanças", fmt.Sprintf("%d/%d lançadas, %.0f m", os.Aggregates.LancaDone, os.Aggregates.LancaTotal, os.Aggregates.LaidLength)})
	if os.Observations != "" {
		tw.AppendRow(table.Row{"Observações", os.Observations})
	}
	tw.Render()

	if exec := os.Aggregates.Execution; exec != nil {
		fmt.Fprintf(out, "\nFechamento local: %s", exec.Status)
		if exec.ClosedAt != nil {
			fmt.Fprintf(out, " em %s", exec.ClosedAt.Format("02/01/2006"))
		}
		fmt.Fprintln(out)
		if exec.Notes != "" {
			fmt.Fprintln(out, exec.Notes)
		}
	}
	return nil
}
