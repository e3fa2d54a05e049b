// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeguard/internal/report"
	"github.com/pdiddy/citeguard/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect archived analysis reports",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports, newest first",
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived report by id or unambiguous id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func init() {
	reportListCmd.Flags().Int("limit", 20, "maximum reports to list")
	reportShowCmd.Flags().String("format", "yaml", "output format: yaml or json")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func openStore() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func runReportList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	heads, err := st.ListReports(limit)
	if err != nil {
		return err
	}
	if len(heads) == 0 {
		fmt.Println("No archived reports.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %5s  %5s  %6s  %s\n", "ID", "CREATED", "REFS", "CITES", "ISSUES", "INPUT")
	for _, h := range heads {
		fmt.Printf("%-36s  %-20s  %5d  %5d  %6d  %s\n",
			h.ID, h.CreatedAt.Format("2006-01-02 15:04:05"),
			h.References, h.Citations, h.Issues, h.InputPath)
	}
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := st.GetReport(args[0])
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("no archived report matches %q", args[0])
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		return report.WriteJSON(os.Stdout, rep)
	}
	return report.WriteYAML(os.Stdout, rep)
}
