package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperengineering/holocene/pkg/planclient"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

var (
	planServerURL  string
	planAPIKey     string
	planJSONOutput bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Read and edit plans on a running server",
	Long:  "List plans and apply scripted edits through the plan service batch API.",
}

func init() {
	planCmd.PersistentFlags().StringVar(&planServerURL, "server", "",
		"Server base URL (overrides HOLOCENE_SERVER_URL)")
	planCmd.PersistentFlags().StringVar(&planAPIKey, "api-key", "",
		"Bearer API key (overrides HOLOCENE_API_KEY)")
	planCmd.PersistentFlags().BoolVar(&planJSONOutput, "json", false,
		"Output in JSON format")

	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planEditCmd)
}

// resolvePlanClient builds a client from flags, falling back to env vars.
func resolvePlanClient() *planclient.Client {
	serverURL := planServerURL
	if serverURL == "" {
		serverURL = os.Getenv("HOLOCENE_SERVER_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	apiKey := planAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("HOLOCENE_API_KEY")
	}

	return planclient.NewClient(serverURL, planclient.WithAPIKey(apiKey))
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

var (
	styleHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("#fe8019")).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("#928374"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fb4934"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printTable writes tab-separated rows as aligned columns. The first row is
// the header and is styled when w is a terminal. Styling happens after
// alignment so escape codes do not skew column widths.
func printTable(w io.Writer, rows [][]string) error {
	var buf bytes.Buffer
	tw := newTabWriter(&buf)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	out := buf.String()
	if isTerminal(w) {
		header, rest, _ := strings.Cut(out, "\n")
		out = styleHeader.Render(header) + "\n" + rest
	}
	_, err := io.WriteString(w, out)
	return err
}

// styled renders text with style only when w is a terminal.
func styled(w io.Writer, style lipgloss.Style, text string) string {
	if !isTerminal(w) {
		return text
	}
	return style.Render(text)
}
