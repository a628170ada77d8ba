package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge graph statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := dbClient.QueryGraphStats(cmd.Context())
	if err != nil {
		exitWithError("%v", err)
	}

	fmt.Printf("Entities: %d\n", stats.TotalEntities)
	for _, typ := range models.EntityTypes {
		if n := stats.Entities[typ]; n > 0 {
			fmt.Printf("  %-13s %d\n", typ, n)
		}
	}
	fmt.Printf("Facts: %d\n", stats.Facts)
	fmt.Printf("Newsletters: %d\n", stats.Newsletters)
	fmt.Printf("Mentions: %d\n", stats.Mentions)

	return nil
}
