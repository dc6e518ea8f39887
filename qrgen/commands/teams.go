package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ftotnem/astar-livesearch/shared/service"
)

// NewTeamsCmd prints the live leaderboard from a running hunt service.
func NewTeamsCmd() *cobra.Command {
	var (
		huntURL string
		query   service.TeamsQuery
	)
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Show the leaderboard of a running hunt service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			page, err := service.NewHuntClient(huntURL).Teams(ctx, query)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tGROUP\tNAME\tCOLOR\tPROGRESS\tLAST ACTIVITY")
			for _, s := range page.Teams {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\t%s\n",
					s.Rank, s.GroupID, s.FullName, s.RouteColor, s.Completed, s.Total,
					s.LastActivity.Local().Format(time.Kitchen))
			}
			fmt.Fprintf(tw, "\npage %d/%d, %d of %d teams complete\n", page.Page, page.TotalPages, page.CompletedCount, page.TeamCount)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&huntURL, "url", "http://localhost:8080", "hunt service base URL")
	cmd.Flags().StringVar(&query.Status, "status", "", "all, active or completed")
	cmd.Flags().StringVar(&query.Search, "search", "", "filter by group id or name")
	cmd.Flags().IntVar(&query.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&query.PageSize, "page-size", 25, "teams per page")
	return cmd
}
