package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/0xADE/ade-launchd/client/launch"
	"github.com/spf13/cobra"
)

const shellRows = 10

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive search: type to filter, !<pos> to launch, exit to quit",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	return shell(c, cmd.InOrStdin(), cmd.OutOrStdout())
}

// shell reads one search or action per line until EOF or exit
func shell(c *launch.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, "!"):
			pos, err := strconv.Atoi(strings.TrimPrefix(line, "!"))
			if err != nil {
				fmt.Fprintf(out, "invalid position %q\n", line)
				break
			}
			res, err := c.Run(pos, false)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			fmt.Fprintf(out, "started pid %d\n", res.PID)
		default:
			if _, err := c.Filter(line); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			page, err := c.ListNext(0, shellRows)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			for _, a := range page.Apps {
				fmt.Fprintf(out, "%4d  %s\n", a.Pos, a.Name)
			}
		}
		fmt.Fprint(out, "> ")
	}

	return scanner.Err()
}
