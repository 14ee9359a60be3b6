package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/cli"
	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/export"
	"mercator-hq/drivetwin/pkg/evidence/query"
	"mercator-hq/drivetwin/pkg/evidence/recorder"
	"mercator-hq/drivetwin/pkg/evidence/retention"
)

var eventsFlags struct {
	backend   string
	timeRange string
	since     time.Duration
	episode   string
	scenario  string
	program   string
	kinds     []string
	source    string
	status    string
	minTick   int64
	maxTick   int64
	limit     int
	offset    int
	episodes  int
	sortBy    string
	order     string
	format    string
	output    string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect recorded evidence",
	Long: `Query, export, verify and prune the evidence recorded during episodes.

Subcommands:
  query     - Query evidence records with filters
  episodes  - List episode summaries
  verify    - Check record content hashes
  prune     - Apply the retention policy once`,
}

var eventsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Long: `Query evidence records with filters.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z"

Examples:
  # Lane changes and load failures of one episode
  drivetwin events query --episode 6f1c... --kind lane_change,load_failure

  # Failed policy events of the last hour as CSV
  drivetwin events query --since 1h --status error --format csv -o failures.csv`,
	RunE: queryEvents,
}

var eventsEpisodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "List episode summaries",
	RunE:  listEpisodes,
}

var eventsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify record hashes and episode chains",
	Long: `Recompute the content hash of every matching record and report the records
whose content no longer matches the hash taken when they were recorded.

Unless record filters (kind, source, status, program, ticks, time) narrow
the selection, each episode's hash chain is walked in sequence order as well:
a missing, duplicated or reordered record breaks the chain. Records removed
from the head of an episode by pruning are reported but are not a failure.`,
	RunE: verifyEvents,
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	RunE:  pruneEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsQueryCmd, eventsEpisodesCmd, eventsVerifyCmd, eventsPruneCmd)

	eventsCmd.PersistentFlags().StringVar(&eventsFlags.backend, "backend", "", "backend: sqlite, memory (uses config if not specified)")

	for _, c := range []*cobra.Command{eventsQueryCmd, eventsVerifyCmd} {
		c.Flags().StringVar(&eventsFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		c.Flags().DurationVar(&eventsFlags.since, "since", 0, "only events newer than this duration")
		c.Flags().StringVar(&eventsFlags.episode, "episode", "", "filter by episode ID")
		c.Flags().StringVar(&eventsFlags.scenario, "scenario", "", "filter by scenario")
		c.Flags().StringVar(&eventsFlags.program, "program", "", "filter by policy program")
		c.Flags().StringSliceVar(&eventsFlags.kinds, "kind", nil, "filter by event kinds")
		c.Flags().StringVar(&eventsFlags.source, "source", "", "filter ticks by command source (policy, autopilot)")
		c.Flags().StringVar(&eventsFlags.status, "status", "", "filter by outcome (success, error)")
		c.Flags().Int64Var(&eventsFlags.minTick, "min-tick", -1, "minimum tick")
		c.Flags().Int64Var(&eventsFlags.maxTick, "max-tick", -1, "maximum tick")
	}
	eventsQueryCmd.Flags().IntVar(&eventsFlags.limit, "limit", query.DefaultLimit, "max results")
	eventsQueryCmd.Flags().IntVar(&eventsFlags.offset, "offset", 0, "pagination offset")
	eventsQueryCmd.Flags().StringVar(&eventsFlags.sortBy, "sort", "event_time", "sort field: event_time, recorded_time, tick, seq")
	eventsQueryCmd.Flags().StringVar(&eventsFlags.order, "order", "asc", "sort order: asc, desc")
	eventsQueryCmd.Flags().StringVar(&eventsFlags.format, "format", "text", "output format: text, json, csv")
	eventsQueryCmd.Flags().StringVarP(&eventsFlags.output, "output", "o", "", "output file (default: stdout)")

	eventsEpisodesCmd.Flags().IntVar(&eventsFlags.episodes, "limit", 20, "max episodes")
	eventsEpisodesCmd.Flags().StringVar(&eventsFlags.format, "format", "text", "output format: text, json, csv")
}

// buildQuery turns the filter flags into a validated query.
func buildQuery(now time.Time) (*evidence.Query, error) {
	q := &evidence.Query{
		EpisodeID: eventsFlags.episode,
		Scenario:  eventsFlags.scenario,
		Program:   eventsFlags.program,
		Kinds:     eventsFlags.kinds,
		Source:    eventsFlags.source,
		Status:    eventsFlags.status,
		Limit:     eventsFlags.limit,
		Offset:    eventsFlags.offset,
		SortBy:    eventsFlags.sortBy,
		SortOrder: eventsFlags.order,
	}

	if eventsFlags.timeRange != "" {
		start, end, err := parseTimeRange(eventsFlags.timeRange)
		if err != nil {
			return nil, cli.NewConfigError("time-range", err.Error())
		}
		q.StartTime, q.EndTime = &start, &end
	}
	if eventsFlags.since > 0 {
		start := now.Add(-eventsFlags.since)
		q.StartTime = &start
	}
	if eventsFlags.minTick >= 0 {
		v := uint64(eventsFlags.minTick)
		q.MinTick = &v
	}
	if eventsFlags.maxTick >= 0 {
		v := uint64(eventsFlags.maxTick)
		q.MaxTick = &v
	}

	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeRange(s string) (time.Time, time.Time, error) {
	startStr, endStr, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range format (expected: start/end)")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	return start, end, nil
}

func openEventStore() (evidenceStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStorage(cfg.Evidence, eventsFlags.backend)
	if err != nil {
		return nil, cli.NewCommandError("events", err)
	}
	return store, nil
}

func queryEvents(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(eventsFlags.format)
	if err != nil {
		return err
	}
	q, err := buildQuery(time.Now())
	if err != nil {
		return err
	}

	store, err := openEventStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := commandContext(cmd)
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("events", fmt.Errorf("query failed: %w", err))
	}

	out := cmd.OutOrStdout()
	if eventsFlags.output != "" {
		f, err := os.Create(eventsFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if format == cli.FormatText {
		return writeRecordTable(out, records)
	}
	exporter, err := export.New(string(format), true)
	if err != nil {
		return err
	}
	return exporter.Export(ctx, records, out)
}

func writeRecordTable(w io.Writer, records []*evidence.Record) error {
	table := &cli.Table{Columns: []string{"time", "episode", "tick", "kind", "program", "source", "detail"}}
	for _, r := range records {
		table.Append(r.EventTime.Format(time.RFC3339Nano), shortID(r.EpisodeID), r.Tick, r.Kind,
			r.Program, r.Source, recordDetail(r))
	}
	if err := (&cli.TextFormatter{}).FormatTo(w, table); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal records: %d\n", len(records))
	return err
}

// recordDetail is the most informative field of a record for text output.
func recordDetail(r *evidence.Record) string {
	switch {
	case r.Error != "":
		return fmt.Sprintf("[%s] %s", r.ErrorType, r.Error)
	case r.Lane != "":
		return r.Lane
	case r.Message != "":
		return r.Message
	case r.Kind == "tick":
		return fmt.Sprintf("acc=%.2f steer=%.3f", r.Acceleration, r.Steering)
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func listEpisodes(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(eventsFlags.format)
	if err != nil {
		return err
	}
	store, err := openEventStore()
	if err != nil {
		return err
	}
	defer store.Close()

	episodes, err := store.Episodes(commandContext(cmd), eventsFlags.episodes)
	if err != nil {
		return cli.NewCommandError("events", err)
	}

	table := &cli.Table{Columns: []string{
		"episode_id", "scenario", "started_at", "termination", "ticks", "policy_ticks", "autopilot_ticks", "distance",
	}}
	for _, e := range episodes {
		termination := e.Termination
		if e.FinishedAt == nil {
			termination = "running"
		}
		table.Append(e.EpisodeID, e.Scenario, e.StartedAt.Format(time.RFC3339), termination,
			e.Ticks, e.PolicyTicks, e.AutopilotTicks, fmt.Sprintf("%.1f", e.Distance))
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func verifyEvents(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(time.Now())
	if err != nil {
		return err
	}
	q.Limit, q.Offset = 0, 0
	chained := wholeEpisodes(q)

	store, err := openEventStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := commandContext(cmd)
	records, errCh, err := store.QueryStream(ctx, q)
	if err != nil {
		return cli.NewCommandError("events", err)
	}

	out := cmd.OutOrStdout()
	var valid, invalid int
	var order []string
	episodes := make(map[string][]*evidence.Record)
	for r := range records {
		if chained {
			if _, ok := episodes[r.EpisodeID]; !ok {
				order = append(order, r.EpisodeID)
			}
			episodes[r.EpisodeID] = append(episodes[r.EpisodeID], r)
			continue
		}
		if recorder.Verify(r) {
			valid++
			continue
		}
		invalid++
		fmt.Fprintf(out, "✗ %s (episode %s, tick %d, %s): content hash mismatch\n", r.ID, shortID(r.EpisodeID), r.Tick, r.Kind)
	}
	if err := <-errCh; err != nil {
		return cli.NewCommandError("events", err)
	}

	var broken int
	for _, id := range order {
		report := recorder.VerifyEpisode(episodes[id])
		bad := make(map[string]bool)
		for _, f := range report.Faults {
			bad[f.RecordID] = true
			fmt.Fprintf(out, "✗ %s (episode %s, seq %d): %s\n", f.RecordID, shortID(id), f.Seq, f.Reason)
		}
		if !report.OK() {
			broken++
		}
		if report.FirstSeq > 1 {
			fmt.Fprintf(out, "  episode %s starts at seq %d, earlier records were pruned\n", shortID(id), report.FirstSeq)
		}
		invalid += len(bad)
		valid += report.Records - len(bad)
	}

	fmt.Fprintf(out, "Verified %d records: %d valid, %d invalid\n", valid+invalid, valid, invalid)
	if chained {
		fmt.Fprintf(out, "Checked %d episode chains: %d broken\n", len(order), broken)
	}
	if invalid > 0 {
		return cli.NewCommandError("events", fmt.Errorf("%d records failed verification", invalid))
	}
	return nil
}

// wholeEpisodes reports whether q selects complete episodes, which is when
// their hash chains can be checked.
func wholeEpisodes(q *evidence.Query) bool {
	return q.Program == "" && len(q.Kinds) == 0 && q.Source == "" && q.Status == "" &&
		q.MinTick == nil && q.MaxTick == nil && q.StartTime == nil && q.EndTime == nil
}

func pruneEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg.Evidence, eventsFlags.backend)
	if err != nil {
		return cli.NewCommandError("events", err)
	}
	defer store.Close()

	rc := cfg.Evidence.Retention
	pruner := retention.NewPruner(store, &retention.Config{
		MaxAge:              rc.MaxAge,
		ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
		ArchivePath:         rc.ArchivePath,
		MaxRecords:          rc.MaxRecords,
	}, nil)

	deleted, err := pruner.Prune(commandContext(cmd))
	if err != nil {
		return cli.NewCommandError("events", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records\n", deleted)
	return nil
}
