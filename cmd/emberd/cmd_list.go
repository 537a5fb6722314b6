package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embervm/ember/pkg/state"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered VMM instances",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	registry, err := state.OpenRegistry(filepath.Join(stateDir(), "registry.db"))
	if err != nil {
		return err
	}
	defer registry.Close()

	instances, err := registry.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVM STATE\tSOCKET\tCREATED\tPID")
	for _, inst := range instances {
		vmState := inst.VmState
		if vmState == "" {
			vmState = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			inst.ID, vmState, inst.SocketPath,
			inst.CreatedAt.Format("2006-01-02 15:04"), inst.PID)
	}
	return w.Flush()
}
