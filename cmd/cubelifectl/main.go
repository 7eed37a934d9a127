package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cubelife/internal/config"
	api "cubelife/pkg/cubelife"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "resume":
		return runResume(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "tournament":
		return runTournament(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "export-csv":
		return runExportCSV(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that opens a client.
type clientFlags struct {
	configPath   *string
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	logLevel     *string
	logFormat    *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		configPath:   fs.String("config", "", "YAML configuration file"),
		storeKind:    fs.String("store", "", "store backend: memory|sqlite (default from config)"),
		dbPath:       fs.String("db-path", "", "sqlite database path (default from config)"),
		artifactsDir: fs.String("artifacts-dir", "", "run artifacts directory (default from config)"),
		logLevel:     fs.String("log-level", "", "log level: debug|info|warn|error"),
		logFormat:    fs.String("log-format", "", "log format: text|json"),
	}
}

func (f clientFlags) open() (*api.Client, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return nil, err
	}
	if *f.logLevel != "" {
		cfg.Logging.Level = *f.logLevel
	}
	if *f.logFormat != "" {
		cfg.Logging.Format = *f.logFormat
	}
	return api.New(api.Options{
		Config:       cfg,
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		Logger:       cfg.Logging.NewLogger(os.Stderr),
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id (generated when empty)")
	gens := fs.Int("gens", 0, "generations to evaluate (default from config)")
	workers := fs.Int("workers", 0, "parallel simulations (default from config)")
	pop := fs.Int("pop", 0, "initial population (default from config)")
	mode := fs.String("mode", "", "fitness mode: distance|efficiency|jump|area|spartan|outcast|random")
	seed := fs.Uint("seed", 0, "random seed (default from config)")
	chaining := fs.Bool("chaining", false, "allow chained fitness modes")
	snapshotEvery := fs.Int("snapshot-every", 0, "write a snapshot every N evaluations (default from config)")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gens < 0 || *workers < 0 || *pop < 0 || *snapshotEvery < 0 {
		return errors.New("gens, workers, pop and snapshot-every must be >= 0")
	}
	if uint64(*seed) > math.MaxUint32 {
		return fmt.Errorf("seed %d does not fit in 32 bits", *seed)
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, api.RunRequest{
		RunID:         *runID,
		Generations:   *gens,
		Workers:       *workers,
		SnapshotEvery: *snapshotEvery,
		Population:    *pop,
		FitnessMode:   *mode,
		Seed:          uint32(*seed),
		AllowChaining: *chaining,
	})
	if err != nil {
		return err
	}
	return printRunSummary(summary, *jsonOut)
}

func runResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "resume the most recently updated run")
	gens := fs.Int("gens", 0, "additional generations (default from config)")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRun(*runID, *latest, "resume"); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Resume(ctx, api.ResumeRequest{RunID: *runID, Latest: *latest, Generations: *gens})
	if err != nil {
		return err
	}
	return printRunSummary(summary, *jsonOut)
}

func printRunSummary(summary api.RunSummary, jsonOut bool) error {
	if jsonOut {
		return writeJSON(summary)
	}
	for i, best := range summary.BestByGeneration {
		outcome := ""
		if i < len(summary.Outcomes) {
			outcome = summary.Outcomes[i]
		}
		fmt.Printf("evaluation=%d outcome=%s best_fitness=%.6f\n", i+1, outcome, best)
	}
	fmt.Printf("run_id=%s generation=%d champion=%s fitness=%.6f all_time=%s evaluations=%s\n",
		summary.RunID,
		summary.Generation,
		displayName(summary.Champion),
		summary.ChampionFitness,
		displayName(summary.AllTimeChampion),
		humanize.Comma(int64(len(summary.BestByGeneration))),
	)
	if summary.ChampionGenome != "" {
		fmt.Printf("genome=%s\n", summary.ChampionGenome)
	}
	if summary.ArtifactsDir != "" {
		fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	path := fs.String("path", "", "snapshot file")
	jsonOut := fs.Bool("json", false, "emit the snapshot summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" && fs.NArg() > 0 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		return errors.New("inspect requires --path or a snapshot file argument")
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Inspect(ctx, *path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Printf("path=%s size=%s version=%d run_id=%s generation=%d mode=%s\n",
		summary.Path,
		humanize.Bytes(uint64(summary.SizeBytes)),
		summary.Header.Version,
		summary.Header.RunID,
		summary.Header.Generation,
		summary.Header.Mode,
	)
	fmt.Printf("champion=%s fitness=%.6f all_time=%s\n",
		displayName(summary.Header.Champion),
		summary.Header.Fitness,
		displayName(summary.AllTimeChampion),
	)
	fmt.Printf("population=%d history=%d tree_nodes=%s dedupe=%s\n",
		summary.PopulationSize,
		summary.HistoryLength,
		humanize.Comma(int64(summary.TreeNodes)),
		humanize.Comma(int64(summary.DedupeSize)),
	)
	fmt.Printf("dead_ends=%d backtracks=%d completed_lines=%d champion_defenses=%d exhaustions=%d\n",
		summary.Counters.DeadEnds,
		summary.Counters.Backtracks,
		summary.Counters.CompletedLines,
		summary.Counters.ChampionDefenses,
		summary.Counters.Exhaustions,
	)
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show lineage for the most recently updated run")
	node := fs.Int("node", -1, "tree node id (<0 for the current branch)")
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRun(*runID, *latest, "lineage"); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, api.LineageRequest{RunID: *runID, Latest: *latest, NodeID: *node})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	for _, rec := range lineage {
		fmt.Printf("gen=%d node=%d name=%s parent=%s status=%s mode=%s fitness=%.6f genome=%s\n",
			rec.Generation,
			rec.NodeID,
			rec.Name,
			displayName(rec.ParentName),
			rec.Status,
			rec.Mode,
			rec.Fitness,
			rec.Genome,
		)
	}
	return nil
}

func runTournament(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tournament", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "hold the tournament for the most recently updated run")
	size := fs.Int("size", 0, "historical champions to re-evaluate (default from config)")
	jsonOut := fs.Bool("json", false, "emit the tournament result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRun(*runID, *latest, "tournament"); err != nil {
		return err
	}
	if *size < 0 {
		return errors.New("size must be >= 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Tournament(ctx, api.TournamentRequest{RunID: *runID, Latest: *latest, Size: *size})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(result)
	}
	for i, score := range result.Scores {
		fmt.Printf("%s entrant score=%.6f\n", humanize.Ordinal(i+1), score)
	}
	fmt.Printf("run_id=%s winner=%s node=%d fitness=%.6f mode=%s next_generation=%d\n",
		result.RunID,
		result.Winner,
		result.NodeID,
		result.Fitness,
		result.Mode,
		result.NextGeneration,
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s updated=%s generation=%d mode=%s champion=%s fitness=%.6f\n",
			r.RunID,
			r.CreatedAtUTC,
			sinceDisplay(r.UpdatedAtUTC),
			r.Generation,
			r.Mode,
			displayName(r.Champion),
			r.ChampionFitness,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recently updated run")
	outDir := fs.String("out", "", "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRun(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runExportCSV(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-csv", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recently updated run")
	out := fs.String("out", "", "CSV output path (default exports/<run-id>.csv)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireRun(*runID, *latest, "export-csv"); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.ExportCSV(ctx, api.ExportCSVRequest{RunID: *runID, Latest: *latest, Path: *out})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s rows=%s to=%s\n", exported.RunID, humanize.Comma(int64(exported.Generations)), exported.Path)
	return nil
}

func requireRun(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "-"
	}
	return name
}

func sinceDisplay(stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return strings.ReplaceAll(humanize.Time(t), " ", "_")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cubelifectl <run|resume|inspect|lineage|tournament|runs|export|export-csv> [flags]", msg)
}
