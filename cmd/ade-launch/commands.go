package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/0xADE/ade-launchd/client/launch"
	"github.com/spf13/cobra"
)

var (
	listOffset int
	listLimit  int
	inTerminal bool
)

var listCmd = &cobra.Command{
	Use:   "list [search...]",
	Short: "List entries, best match first",
	RunE:  runList,
}

var runCmd = &cobra.Command{
	Use:   "run <pos>",
	Short: "Launch the entry at a list position",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var infoCmd = &cobra.Command{
	Use:   "info <pos>",
	Short: "Show details of the entry at a list position",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [paths...]",
	Short: "Rescan applications, optionally limiting executables to paths",
	RunE:  runReindex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "first position to show")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "number of rows (default: server page size)")
	runCmd.Flags().BoolVarP(&inTerminal, "terminal", "t", false, "run inside the default terminal")

	rootCmd.AddCommand(listCmd, runCmd, infoCmd, reindexCmd, statusCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Filter(strings.Join(args, " ")); err != nil {
		return err
	}

	var page launch.Page
	if listOffset > 0 || listLimit > 0 {
		page, err = c.ListNext(listOffset, listLimit)
	} else {
		page, err = c.List()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, a := range page.Apps {
		fmt.Fprintf(out, "%4d  %s\n", a.Pos, a.Name)
	}
	if shown := page.Offset + len(page.Apps); shown < page.Total {
		fmt.Fprintf(out, "... %d more (use --offset %d)\n", page.Total-shown, shown)
	}
	return nil
}

func parsePos(arg string) (int, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	return pos, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	pos, err := parsePos(args[0])
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Run(pos, inTerminal)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started pid %d\n", res.PID)
	if !res.Persisted {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: launch was not recorded")
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	pos, err := parsePos(args[0])
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.Info(pos)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:  %s\n", info.Name)
	fmt.Fprintf(out, "id:    %s\n", info.ID)
	fmt.Fprintf(out, "kind:  %s\n", info.Kind)
	fmt.Fprintf(out, "usage: %d\n", info.Usage)
	if info.IconName != "" {
		fmt.Fprintf(out, "icon:  %s\n", info.IconName)
	}
	if info.Args != "" {
		fmt.Fprintf(out, "exec:  %s\n", info.Args)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Reindex(args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d entries\n", n)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "entries:  %d\n", st.Entries)
	fmt.Fprintf(out, "indexing: %t\n", st.Indexing)
	fmt.Fprintf(out, "cached:   %t\n", st.Cached)
	return nil
}
