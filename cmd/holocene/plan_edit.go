package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperengineering/holocene/internal/types"
	"github.com/hyperengineering/holocene/pkg/planclient"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errEmptyScript = errors.New("edit script has no steps")

var (
	editScriptPath string
	editDryRun     bool
	editPolicy     string
)

var planEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply an edit script as one batch",
	Long: `Loads the current plans, replays the steps of a YAML edit script through
the pending-operation tracker and saves the result as a single batch.

Each step is one of add, edit or delete. Added rows may be named with ref
and targeted by later steps; existing rows are targeted by id.

  steps:
    - action: add
      ref: crate
      set: {name: Crate, length: 1.2, quantity: 4}
    - action: edit
      id: 01HXAMPLE
      set: {weight: 2.5}
    - action: delete
      ref: crate`,
	Args: cobra.NoArgs,
	RunE: runPlanEdit,
}

func init() {
	planEditCmd.Flags().StringVarP(&editScriptPath, "file", "f", "",
		"Edit script path (- reads stdin)")
	planEditCmd.Flags().BoolVar(&editDryRun, "dry-run", false,
		"Print the pending batch without saving")
	planEditCmd.Flags().StringVar(&editPolicy, "policy", "keep",
		"Delete policy for rows with a pending update: keep or drop")
	planEditCmd.MarkFlagRequired("file")
}

// editScript is the YAML layout read by plan edit.
type editScript struct {
	Steps []editStep `yaml:"steps"`
}

type editStep struct {
	Action string           `yaml:"action"`
	Ref    string           `yaml:"ref"`
	ID     string           `yaml:"id"`
	Set    *types.PlanPatch `yaml:"set"`
}

func parseDeletePolicy(s string) (planclient.DeletePolicy, error) {
	switch s {
	case "keep", "":
		return planclient.KeepPendingUpdate, nil
	case "drop":
		return planclient.DropPendingUpdate, nil
	default:
		return 0, fmt.Errorf("invalid policy %q: must be keep or drop", s)
	}
}

func readEditScript(cmd *cobra.Command, path string) (*editScript, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var script editScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errEmptyScript
	}
	return &script, nil
}

// replay drives the editor through every step. refs maps script names to
// the temporary ids of added rows.
func replay(editor *planclient.Editor, steps []editStep) error {
	refs := make(map[string]string)

	target := func(i int, s editStep) (string, error) {
		switch {
		case s.ID != "" && s.Ref != "":
			return "", fmt.Errorf("step %d: id and ref are mutually exclusive", i+1)
		case s.ID != "":
			return s.ID, nil
		case s.Ref != "":
			id, ok := refs[s.Ref]
			if !ok {
				return "", fmt.Errorf("step %d: unknown ref %q", i+1, s.Ref)
			}
			return id, nil
		default:
			return "", fmt.Errorf("step %d: id or ref is required", i+1)
		}
	}

	for i, s := range steps {
		switch strings.ToLower(s.Action) {
		case "add":
			if s.ID != "" {
				return fmt.Errorf("step %d: add takes a ref, not an id", i+1)
			}
			if _, dup := refs[s.Ref]; s.Ref != "" && dup {
				return fmt.Errorf("step %d: ref %q already defined", i+1, s.Ref)
			}
			row, err := editor.Add()
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if s.Ref != "" {
				refs[s.Ref] = row.ID
			}
			if !s.Set.IsEmpty() {
				if _, err := editor.Edit(row.ID, s.Set); err != nil {
					return fmt.Errorf("step %d: %w", i+1, err)
				}
			}

		case "edit":
			id, err := target(i, s)
			if err != nil {
				return err
			}
			if s.Set.IsEmpty() {
				return fmt.Errorf("step %d: edit requires set", i+1)
			}
			if _, err := editor.Edit(id, s.Set); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}

		case "delete":
			id, err := target(i, s)
			if err != nil {
				return err
			}
			if err := editor.Delete(id); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}

		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, s.Action)
		}
	}
	return nil
}

func runPlanEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	policy, err := parseDeletePolicy(editPolicy)
	if err != nil {
		return err
	}

	script, err := readEditScript(cmd, editScriptPath)
	if err != nil {
		return err
	}

	editor := planclient.NewEditor(resolvePlanClient(), planclient.WithDeletePolicy(policy))
	if err := editor.Load(ctx); err != nil {
		return err
	}

	if err := replay(editor, script.Steps); err != nil {
		return err
	}

	ops := editor.Pending()
	out := cmd.OutOrStdout()

	if editDryRun {
		if planJSONOutput {
			if ops == nil {
				ops = []types.Operation{}
			}
			return printJSON(out, types.BatchRequest{Operations: ops})
		}
		return printPending(out, ops)
	}

	if len(ops) == 0 {
		fmt.Fprintln(out, "Nothing to save.")
		return nil
	}

	report, err := editor.Save(ctx)
	if report == nil {
		return err
	}
	if planJSONOutput {
		if perr := printJSON(out, report); perr != nil {
			return perr
		}
	} else {
		printReport(out, report)
	}
	return err
}

func printPending(w io.Writer, ops []types.Operation) error {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No pending operations.")
		return nil
	}

	rows := [][]string{{"#", "ACTION", "ID", "DATA"}}
	for i, op := range ops {
		id := op.ID
		if id == "" {
			id = "-"
		}
		rows = append(rows, []string{fmt.Sprint(i), string(op.Action), id, describePatch(op.Data)})
	}
	return printTable(w, rows)
}

func printReport(w io.Writer, report *types.BatchResponse) {
	fmt.Fprintf(w, "Applied %d, no-op %d, rejected %d.\n", report.Applied, report.Noop, report.Rejected)
	for _, r := range report.Results {
		switch r.Status {
		case types.StatusRejected:
			fmt.Fprintf(w, "  %s #%d %s: %s\n", styled(w, styleRed, "rejected"), r.Index, r.Action, r.Error)
		case types.StatusNoop:
			fmt.Fprintf(w, "  %s #%d %s %s\n", styled(w, styleDim, "no-op"), r.Index, r.Action, r.ID)
		}
	}
}

// describePatch renders the set fields of a patch as key=value pairs.
func describePatch(p *types.PlanPatch) string {
	if p.IsEmpty() {
		return "-"
	}
	var parts []string
	add := func(k, v string) { parts = append(parts, k+"="+v) }
	if p.Name != nil {
		add("name", fmt.Sprintf("%q", *p.Name))
	}
	if p.Length != nil {
		add("length", formatNumber(*p.Length))
	}
	if p.Width != nil {
		add("width", formatNumber(*p.Width))
	}
	if p.Height != nil {
		add("height", formatNumber(*p.Height))
	}
	if p.Weight != nil {
		add("weight", formatNumber(*p.Weight))
	}
	if p.Quantity != nil {
		add("quantity", fmt.Sprint(*p.Quantity))
	}
	if p.Stackable != nil {
		add("stackable", yesNo(*p.Stackable))
	}
	if p.Tiltable != nil {
		add("tiltable", yesNo(*p.Tiltable))
	}
	return strings.Join(parts, " ")
}
