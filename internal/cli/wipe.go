package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all graph data",
	Long:  `Delete every entity, fact, newsletter and mention link. The schema stays in place.`,
	RunE:  runWipe,
}

func init() {
	wipeCmd.Flags().BoolVarP(&wipeForce, "force", "f", false, "skip confirmation")
}

func runWipe(cmd *cobra.Command, args []string) error {
	if !wipeForce {
		fmt.Print("This deletes all graph data. Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := dbClient.WipeData(cmd.Context()); err != nil {
		exitWithError("%v", err)
	}

	fmt.Println("Graph data deleted.")
	return nil
}
