package main

import (
	"fmt"
	"strconv"

	"github.com/hyperengineering/holocene/internal/types"
	"github.com/spf13/cobra"
)

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all plans",
	Args:  cobra.NoArgs,
	RunE:  runPlanList,
}

func runPlanList(cmd *cobra.Command, args []string) error {
	plans, err := resolvePlanClient().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	if planJSONOutput {
		return printJSON(cmd.OutOrStdout(), types.ListResponse{Data: plans})
	}

	if len(plans) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No plans found.")
		return nil
	}

	rows := [][]string{{"ID", "NAME", "LENGTH", "WIDTH", "HEIGHT", "WEIGHT", "QTY", "STACKABLE", "TILTABLE"}}
	for _, p := range plans {
		rows = append(rows, planRow(p))
	}
	return printTable(cmd.OutOrStdout(), rows)
}

func planRow(p types.Plan) []string {
	return []string{
		p.ID,
		p.Name,
		formatNumber(p.Length),
		formatNumber(p.Width),
		formatNumber(p.Height),
		formatNumber(p.Weight),
		strconv.Itoa(p.Quantity),
		yesNo(p.Stackable),
		yesNo(p.Tiltable),
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
