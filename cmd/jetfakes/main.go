package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jetfakes/adapters/excel"
	"jetfakes/adapters/tabular"
	"jetfakes/app"
	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/sample"
	"jetfakes/domain/table"
	"jetfakes/internal/batch"
	"jetfakes/internal/config"
	"jetfakes/internal/container"
	"jetfakes/internal/errors"
	"jetfakes/internal/testkit"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jetfakes",
		Short:         "Fake-lepton background fraction estimation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newBatchCmd(),
		newInspectCmd(),
		newLookupCmd(),
		newServeCmd(),
		newReportCmd(),
		newGenerateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

// loadConfig reads an optional .env file, then the environment
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	return config.Load()
}

func newRunCmd() *cobra.Command {
	var (
		input, year, suffix, channel, format string
		samples                              []string
		syst, asJSON                         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute, store and apply fake fractions for one channel/period",
		Long: `Compute the W, ttbar and QCD fractions of the anti-isolated region for
one input directory, store them, export the pre-fakes table and, when
JETFAKES_APPLIER_ENABLED is set, hand off to the weight applier.

Example: jetfakes run -i /data/mt2017 -y 2017 -s nominal --syst`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("input") {
				cfg.Run.InputDir = input
			}
			if flags.Changed("year") {
				cfg.Run.Period = year
			}
			if flags.Changed("suffix") {
				cfg.Run.Suffix = suffix
			}
			if flags.Changed("channel") {
				cfg.Run.Channel = channel
			}
			if flags.Changed("format") {
				cfg.Input.Format = format
			}
			if flags.Changed("samples") {
				cfg.Input.Samples = samples
			}
			if flags.Changed("syst") {
				cfg.Applier.IncludeSystematics = syst
			}
			if err := cfg.ValidateRun(); err != nil {
				return err
			}

			c, err := container.New(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			res, err := c.Pipeline.Run(cmd.Context(), c.RunRequest())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(res)
			}
			printRunResult(res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Directory holding the per-sample event stores")
	cmd.Flags().StringVarP(&year, "year", "y", "", "Data-taking period")
	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "Suffix for the fraction store and staging directory")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Channel (et or mt); detected from the tree when empty")
	cmd.Flags().StringVar(&format, "format", "", "Input format: csv, xlsx or sqlite")
	cmd.Flags().StringSliceVar(&samples, "samples", nil, "Restrict the run to these samples")
	cmd.Flags().BoolVar(&syst, "syst", false, "Ask the weight applier to process systematics")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "batch [jobs-file]",
		Short: "Run several independent channel/period jobs concurrently",
		Long: `Run every job of a JSON jobs file. Jobs are isolated: a failing job is
reported but does not stop the others.

Example jobs file:
  {"max_parallel": 2, "jobs": [{"input": "/data/mt2017", "period": "2017", "suffix": "v1"}]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "read jobs file %s", args[0])
			}
			jobs, err := parseJobFile(data)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			switch {
			case cmd.Flags().Changed("max-parallel"):
				cfg.Batch.MaxParallel = maxParallel
			case jobs.MaxParallel > 0:
				cfg.Batch.MaxParallel = jobs.MaxParallel
			}
			if err := cfg.ValidateBatch(); err != nil {
				return err
			}
			c, err := container.New(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			work := make([]batch.Job, 0, len(jobs.Runs))
			for _, req := range jobs.Runs {
				req := req
				work = append(work, batch.Job{
					Name: jobName(req),
					Fn: func(ctx context.Context) error {
						_, err := c.Pipeline.Run(ctx, req)
						return err
					},
				})
			}

			outcomes := c.Dispatcher.Run(cmd.Context(), work)
			for _, o := range outcomes {
				status := "ok"
				if !o.OK() {
					status = "FAILED: " + o.Error
				}
				fmt.Printf("%-40s %10v  %s\n", o.Name, o.Duration.Round(1e6), status)
			}
			if failed := batch.Failed(outcomes); len(failed) > 0 {
				return errors.InternalError(fmt.Sprintf("%d of %d jobs failed", len(failed), len(outcomes)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Maximum concurrent jobs (overrides the jobs file and JETFAKES_MAX_PARALLEL)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var withStats bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored fraction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			runs, err := c.Pipeline.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no fraction runs stored")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("%s  %s%s_%s  tree=%s  created=%s  fingerprint=%.12s\n",
					run.RunID, run.Channel, run.Period, run.Suffix, run.Tree,
					run.CreatedAt, run.Fingerprint)
				if withStats {
					if err := printSurfaceStats(cmd.Context(), c, run); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withStats, "stats", false, "Summarize each stored fraction surface")
	return cmd
}

func printSurfaceStats(ctx context.Context, c *container.Container, run fraction.RunInfo) error {
	set, _, err := c.Pipeline.LoadSet(ctx, run.Channel, run.Period, run.Suffix)
	if err != nil {
		return err
	}
	for _, cat := range sample.AllCategories {
		for _, g := range sample.NormalizedGroups {
			surface, err := set.Surface(g, cat)
			if err != nil {
				return err
			}
			st, err := excel.SummarizeSurface(fraction.HistName(g, cat), surface)
			if err != nil {
				return err
			}
			fmt.Printf("    %-20s bins=%-3d min=%.4f median=%.4f mean=%.4f max=%.4f\n",
				st.Key, st.Bins, st.Min, st.Median, st.Mean, st.Max)
		}
	}
	return nil
}

func newLookupCmd() *cobra.Command {
	var (
		suffix, category    string
		visMass, njets, mjj float64
	)

	cmd := &cobra.Command{
		Use:   "lookup [channel] [period]",
		Short: "Look up the fractions for one event",
		Long: `Look up the stored W, ttbar and QCD fractions for an event's visible mass
and jet multiplicity. Without --category the event's own category is used.

Example: jetfakes lookup mt 2017 --vis-mass 95 --njets 2 --mjj 450`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat sample.Category
			if category != "" {
				var err error
				if cat, err = sample.ParseCategory(category); err != nil {
					return errors.Wrap(err, "invalid category")
				}
			}
			c, err := newContainer()
			if err != nil {
				return err
			}
			res, err := c.Pipeline.Lookup(cmd.Context(), args[0], args[1], suffix, cat, visMass, njets, mjj)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "Store suffix; the newest store when empty")
	cmd.Flags().StringVar(&category, "category", "", "inclusive, 0jet, boosted or vbf")
	cmd.Flags().Float64Var(&visMass, "vis-mass", 0, "Visible mass")
	cmd.Flags().Float64Var(&njets, "njets", 0, "Jet multiplicity")
	cmd.Flags().Float64Var(&mjj, "mjj", 0, "Dijet invariant mass")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored fractions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				c.Config.Server.Addr = addr
			}
			return c.Server().Run(cmd.Context(), c.Config.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides JETFAKES_LISTEN_ADDR)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var suffix, output, runID string

	cmd := &cobra.Command{
		Use:   "report [channel] [period]",
		Short: "Write a stored fraction run to an Excel workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer()
			if err != nil {
				return err
			}
			var (
				set  *fraction.Set
				info *fraction.RunInfo
			)
			if runID != "" {
				id, perr := core.ParseRunID(runID)
				if perr != nil {
					return errors.WithCode(errors.CodeInvalidInput, perr)
				}
				set, info, err = c.Pipeline.LoadRun(cmd.Context(), args[0], args[1], suffix, id)
			} else {
				set, info, err = c.Pipeline.LoadSet(cmd.Context(), args[0], args[1], suffix)
			}
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s%s_%s_fractions.xlsx", info.Channel, info.Period, info.Suffix)
			}
			if err := excel.NewReportWriter(excel.DefaultReportConfig()).Write(output, set, info); err != nil {
				return err
			}
			fmt.Printf("report written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "Store suffix; the newest store when empty")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Workbook path")
	cmd.Flags().StringVar(&runID, "run", "", "Report this run ID instead of the newest")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		output, format, channel string
		events                  int
		seed                    int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic input directory with every registered sample",
		Long: `Write deterministic synthetic event stores, one per registered sample, for
trying out the pipeline without real ntuples.

Example: jetfakes generate -o /tmp/mt2017 -c mt --format sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.InvalidInput("--output is required")
			}
			tree, err := table.TreeForChannel(channel)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(output, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", output)
			}

			gc := testkit.DefaultGeneratorConfig()
			gc.Tree = tree
			if events > 0 {
				gc.EventsPerSample = events
			}
			gc.Seed = seed

			tables := testkit.NewGenerator(gc).Generate()
			names := make([]string, 0, len(tables))
			for name := range tables {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := tabular.WriteStore(cmd.Context(), output, format, tables[name]); err != nil {
					return errors.Wrapf(err, "write %s", name)
				}
			}
			fmt.Printf("wrote %d %s stores (%s) to %s\n", len(names), format, tree, filepath.Clean(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to write")
	cmd.Flags().StringVar(&format, "format", tabular.FormatCSV, "Store format: csv, xlsx or sqlite")
	cmd.Flags().StringVarP(&channel, "channel", "c", "mt", "Channel (et or mt)")
	cmd.Flags().IntVar(&events, "events", 0, "Events per sample")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	return cmd
}

func newContainer() (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return container.New(cfg, nil)
}

func printRunResult(res *app.RunResult) {
	fmt.Printf("run %s: %s%s_%s (tree %s)\n", res.Info.RunID, res.Info.Channel, res.Info.Period, res.Info.Suffix, res.Info.Tree)
	fmt.Printf("  events=%d dropped=%d pre-fakes=%d clamped=%d degenerate=%d\n",
		res.Stats.Events, res.Stats.Dropped, res.Stats.PreFakes, res.Clamps, res.Degenerate)
	for _, s := range res.Summaries {
		fmt.Printf("  %-10s denom=%12.3f  w=%.4f tt=%.4f qcd=%.4f\n", s.Category, s.Denominator,
			s.Fractions[sample.GroupW], s.Fractions[sample.GroupTT], s.Fractions[sample.GroupQCD])
	}
	fmt.Printf("  store:     %s\n", res.StoreLocation)
	fmt.Printf("  pre-fakes: %s\n", res.PreFakesPath)
	if res.OutputPath != "" {
		fmt.Printf("  output:    %s\n", res.OutputPath)
	}
	for _, st := range res.Stages {
		fmt.Printf("  stage %-8s %v\n", st.Name, st.Duration)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
