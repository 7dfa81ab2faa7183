package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/persistence"
)

var reportFlags struct {
	db      string
	notices int
	worst   int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the saved colony: statuses, notifications and snapshots",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.db, "db", "", "Database path (defaults to the configured db_path)")
	f.IntVar(&reportFlags.notices, "notices", 10, "Recent notification changes to list")
	f.IntVar(&reportFlags.worst, "worst", 10, "Colonists with the least reach to list")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.DBPath
	if reportFlags.db != "" {
		path = reportFlags.db
	}

	db, err := persistence.Inspect(path)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	return writeReport(out, db, reportFlags.worst, reportFlags.notices)
}

func writeReport(out io.Writer, db *persistence.DB, worst, notices int) error {
	tick, _ := db.GetMeta("last_tick")
	fmt.Fprintf(out, "Last save: tick %s\n", tick)

	statuses, err := db.LatestStatuses()
	if err != nil {
		return fmt.Errorf("load statuses: %w", err)
	}
	fmt.Fprintf(out, "\nStatuses (%s colonists evaluated):\n", humanize.Comma(int64(len(statuses))))
	for _, st := range statuses[:min(worst, len(statuses))] {
		fmt.Fprintf(out, "  #%-4d %-10s reach %-6s sleep=%-5t meal=%-5t toilet=%-5t shown=%s (%s checks)\n",
			st.AgentID, st.Name, humanize.Comma(int64(st.Reachable)),
			st.CanReachSleep, st.CanReachMeal, st.CanReachSanitation,
			st.LastShown, humanize.Comma(int64(st.Evaluations)))
	}

	counts, err := db.NoticeCounts()
	if err != nil {
		return fmt.Errorf("count notices: %w", err)
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	fmt.Fprintf(out, "\nNotifications shown:\n")
	if len(kinds) == 0 {
		fmt.Fprintf(out, "  none\n")
	}
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-9s %s\n", k, humanize.Comma(int64(counts[k])))
	}

	recent, err := db.RecentNotices(notices)
	if err != nil {
		return fmt.Errorf("recent notices: %w", err)
	}
	if len(recent) > 0 {
		fmt.Fprintf(out, "\nRecent changes:\n")
	}
	for _, n := range recent {
		verb := "cleared"
		if n.Visible {
			verb = "shown"
		}
		fmt.Fprintf(out, "  %-16s %s %s for %s\n", engine.SimTime(n.Tick), n.Kind, verb, n.Name)
	}

	snaps, err := db.Snapshots()
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	fmt.Fprintf(out, "\nSnapshots:\n")
	for _, s := range snaps {
		fmt.Fprintf(out, "  #%-3d tick %-8s %s -> %s  run %s\n",
			s.ID, humanize.Comma(int64(s.Tick)),
			humanize.Bytes(uint64(s.RawSize)), humanize.Bytes(uint64(s.StoredSize)), s.RunID[:min(8, len(s.RunID))])
	}
	return nil
}
