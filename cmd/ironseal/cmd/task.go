package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/ironseal/encryption"
	bboltstorage "github.com/jmcleod/ironseal/storage/bbolt"
	"github.com/jmcleod/ironseal/tasks"
)

var taskDescription string

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks in the local store",
	Long:  `Tasks are encrypted before they are written when encryption is set up.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "task description")
	taskCmd.AddCommand(taskAddCmd, taskShowCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

// openTaskStore opens the bbolt data file. The returned func closes both
// the database and the encryption service.
func openTaskStore() (*tasks.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DataFile), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(cfg.DataFile, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open task storage: %w", err)
	}
	svc, err := newService()
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	var sealer encryption.FieldSealer = svc
	closeFn := func() {
		svc.Close()
		repo.Close()
	}
	return tasks.NewStore(repo, sealer), closeFn, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openTaskStore()
	if err != nil {
		return err
	}
	defer closeFn()

	t, err := store.Create(args[0], taskDescription)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Added task %s", color.YellowString(t.ID))
	if !t.Encrypted {
		hint(out, "Stored unencrypted; run %s to protect new tasks", color.YellowString("ironseal encryption setup"))
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openTaskStore()
	if err != nil {
		return err
	}
	defer closeFn()

	t, err := store.Get(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(out, "Completed:   %t\n", t.Completed)
	fmt.Fprintf(out, "Encrypted:   %t\n", t.Encrypted)
	fmt.Fprintf(out, "Created:     %s\n", t.CreatedAt.Format(time.RFC3339))
	return nil
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	store, closeFn, err := openTaskStore()
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := store.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tENCRYPTED")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", t.ID, t.Title, t.Encrypted)
	}
	return tw.Flush()
}
