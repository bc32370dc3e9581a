/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/fillline/internal/auth"
	"github.com/friendsincode/fillline/internal/compare"
	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/logging"
	"github.com/friendsincode/fillline/internal/lotio"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/scheduler"
	"github.com/friendsincode/fillline/internal/server"
	"github.com/friendsincode/fillline/internal/strategy"
	"github.com/friendsincode/fillline/internal/telemetry"
	"github.com/friendsincode/fillline/internal/validate"
	"github.com/friendsincode/fillline/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	schedulingPath string
)

var rootCmd = &cobra.Command{
	Use:   "fillline",
	Short: "Fillline - filling line production scheduler",
	Long:  "Fillline plans pharmaceutical filling campaigns: it orders lots into clean/changeover/fill blocks under a sterile window limit and serves the planner over an HTTP API.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Fillline server",
	Long:  "Start the HTTP API server and job workers for schedule planning",
	RunE:  runServe,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <lots.csv>",
	Short: "Plan a schedule from a lots CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

var compareCmd = &cobra.Command{
	Use:   "compare <lots.csv>",
	Short: "Run every strategy over the same lots and compare KPIs",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

var validateCmd = &cobra.Command{
	Use:   "validate <lots.csv>",
	Short: "Check a lots CSV against the scheduling rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	RunE:  runToken,
}

var (
	strategyName string
	startArg     string
	outPath      string
	sequencePath string

	compareStrategies []string

	tokenUser  string
	tokenRoles []string
	tokenTTL   time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&schedulingPath, "scheduling-config", "", "path to a scheduling parameters YAML file (defaults apply when unset)")

	scheduleCmd.Flags().StringVar(&strategyName, "strategy", "smart-pack", "ordering strategy ("+strings.Join(strategy.Names(), ", ")+")")
	scheduleCmd.Flags().StringVar(&startArg, "start", "", "schedule start time, "+lotio.TimeFormat+" (default: now, UTC)")
	scheduleCmd.Flags().StringVar(&outPath, "out", "", "write the schedule CSV here instead of stdout")
	scheduleCmd.Flags().StringVar(&sequencePath, "sequence", "", "schedule lots in the exact order listed in this file (one lot ID per line)")

	compareCmd.Flags().StringVar(&startArg, "start", "", "schedule start time, "+lotio.TimeFormat+" (default: now, UTC)")
	compareCmd.Flags().StringSliceVar(&compareStrategies, "strategies", nil, "strategies to compare (default: all)")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "subject user ID")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "roles", []string{"planner"}, "roles to embed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, scheduleCmd, compareCmd, validateCmd, tokenCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads process configuration (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func loadScheduling() (*config.Scheduling, error) {
	if schedulingPath == "" {
		return config.DefaultScheduling(), nil
	}
	return config.LoadScheduling(schedulingPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	sched, err := loadScheduling()
	if err != nil {
		return fmt.Errorf("load scheduling config: %w", err)
	}

	logger.Info().Msg("Fillline starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, sched, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Fillline stopped")
	return nil
}

func readLotsFile(path string, sched *config.Scheduling) ([]models.Lot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return lotio.ReadLots(f, sched)
}

func parseStart() (time.Time, error) {
	if startArg == "" {
		return time.Now().UTC().Truncate(time.Minute), nil
	}
	start, err := time.Parse(lotio.TimeFormat, startArg)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --start: %w", err)
	}
	return start.UTC(), nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	sched, err := loadScheduling()
	if err != nil {
		return err
	}
	lots, err := readLotsFile(args[0], sched)
	if err != nil {
		return err
	}
	start, err := parseStart()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var result *models.Schedule
	if sequencePath != "" {
		sf, err := os.Open(sequencePath)
		if err != nil {
			return err
		}
		sequence, err := lotio.ReadSequence(sf)
		sf.Close()
		if err != nil {
			return err
		}
		ordered, missing := lotio.OrderBySequence(lots, sequence)
		for _, id := range missing {
			fmt.Fprintf(os.Stderr, "warning: sequence names unknown lot %q\n", id)
		}
		result, err = scheduler.PlanInOrder(ctx, ordered, start, sched)
		if err != nil {
			return err
		}
	} else {
		result, err = scheduler.Plan(ctx, lots, start, sched, strategyName)
		if err != nil {
			return err
		}
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := lotio.WriteSchedule(out, result.Activities); err != nil {
		return err
	}

	res := validate.Schedule(result.Activities, sched)
	return lotio.WriteSummary(os.Stderr, result.KPIs, res)
}

func runCompare(cmd *cobra.Command, args []string) error {
	sched, err := loadScheduling()
	if err != nil {
		return err
	}
	lots, err := readLotsFile(args[0], sched)
	if err != nil {
		return err
	}
	start, err := parseStart()
	if err != nil {
		return err
	}

	names := compareStrategies
	if len(names) == 0 {
		names = strategy.Names()
	}

	report, err := compare.Run(cmd.Context(), lots, start, sched, names)
	if err != nil {
		return err
	}

	return writeComparisonTable(os.Stdout, report)
}

func writeComparisonTable(w io.Writer, report *compare.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	keys := compare.KPIKeys()

	fmt.Fprint(tw, "Run")
	for _, k := range keys {
		fmt.Fprintf(tw, "\t%s", k)
	}
	fmt.Fprintln(tw)

	writeRow := func(e compare.Entry) {
		fmt.Fprint(tw, e.Run)
		if e.Err != "" {
			fmt.Fprintf(tw, "\tFAILED: %s", e.Err)
			fmt.Fprintln(tw)
			return
		}
		for _, k := range keys {
			cell := e.Schedule.KPIs[k]
			if d, ok := e.Deltas[k]; ok {
				cell += " (" + d + ")"
			}
			fmt.Fprintf(tw, "\t%s", cell)
		}
		fmt.Fprintln(tw)
	}

	writeRow(report.Given)
	for _, e := range report.Strategies {
		writeRow(e)
	}
	return tw.Flush()
}

func runValidate(cmd *cobra.Command, args []string) error {
	sched, err := loadScheduling()
	if err != nil {
		return err
	}
	lots, err := readLotsFile(args[0], sched)
	if err != nil {
		return err
	}

	res := validate.Lots(lots, sched)
	for _, w := range res.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Printf("ERROR: %s\n", e)
	}
	if !res.OK() {
		return fmt.Errorf("%d validation error(s)", len(res.Errors))
	}
	fmt.Printf("OK: %d lots valid\n", len(lots))
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("FILLLINE_JWT_SIGNING_KEY must be set to issue tokens")
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{
		UserID: tokenUser,
		Roles:  tokenRoles,
	}, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
