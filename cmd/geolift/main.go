package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryanlrappa/geo-testing/internal/capture"
	"github.com/ryanlrappa/geo-testing/internal/config"
	"github.com/ryanlrappa/geo-testing/internal/display"
	"github.com/ryanlrappa/geo-testing/internal/logging"
	"github.com/ryanlrappa/geo-testing/internal/power"
	"github.com/ryanlrappa/geo-testing/internal/rbridge"
	"github.com/ryanlrappa/geo-testing/internal/rscript"
	"github.com/ryanlrappa/geo-testing/internal/storage"
	"github.com/ryanlrappa/geo-testing/internal/tui"
	"github.com/ryanlrappa/geo-testing/internal/viz"
)

var (
	dataDir    string
	configFile string
	verbose    bool
	// Display
	inline    bool
	mono      bool
	termWidth int
	// R session
	rBinary   string
	workspace string
	setupFile string
	// Plot device
	plotWidth  int
	plotHeight int
	pointSize  int
	// Power analysis
	lookback  int
	preset    string
	showAscii bool
	noSave    bool
)

// main registers the geolift commands. Every plotting command follows the
// same shape: open an R session, build a validated script, capture the
// rendered plot, display it inline or via the platform viewer.
func main() {
	rootCmd := &cobra.Command{
		Use:   "geolift",
		Short: "GeoLift plot bridge: capture and display R plots from the terminal",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".geolift", "data directory for captured plots")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&inline, "inline", true, "render inline; use --inline=false for the platform viewer")
	rootCmd.PersistentFlags().BoolVar(&mono, "mono", false, "monochrome braille rendering")
	rootCmd.PersistentFlags().IntVar(&termWidth, "term-width", config.DefaultTermWidth, "inline render width in columns")
	rootCmd.PersistentFlags().StringVar(&rBinary, "r", "R", "R binary")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", ".RData image loaded at session start")
	rootCmd.PersistentFlags().StringVar(&setupFile, "setup", "", "R script sourced at session start")
	rootCmd.PersistentFlags().BoolVar(&noSave, "no-save", false, "do not save the captured plot")

	plotCmd := &cobra.Command{
		Use:   "plot [R expression]",
		Short: "capture and display a raw GeoLift plot expression",
		Args:  cobra.ExactArgs(1),
		RunE:  runGeoPlot,
	}

	marketCmd := &cobra.Command{
		Use:   "market [id]",
		Short: "power analysis diagnostic plot for one treatment group",
		Args:  cobra.ExactArgs(1),
		RunE:  runMarket,
	}

	deepDiveCmd := &cobra.Command{
		Use:   "deep-dive [id]",
		Short: "power curve deep dive for one treatment group",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeepDive,
	}
	deepDiveCmd.Flags().IntVar(&lookback, "lookback", config.DefaultLookback, "lookback window in periods")
	deepDiveCmd.Flags().StringVar(&preset, "preset", "", "power preset name")
	deepDiveCmd.Flags().BoolVar(&showAscii, "ascii", false, "also print the ascii power curve")

	multicellCmd := &cobra.Command{
		Use:   "multicell [ids...]",
		Short: "stacked lift diagnostic across treatment cells",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMulticell,
	}

	multicellDeepDiveCmd := &cobra.Command{
		Use:   "multicell-deep-dive [ids...]",
		Short: "stacked power curve deep dive across treatment cells",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMulticellDeepDive,
	}
	multicellDeepDiveCmd.Flags().IntVar(&lookback, "lookback", config.DefaultLookback, "lookback window in periods")
	multicellDeepDiveCmd.Flags().StringVar(&preset, "preset", "", "power preset name")
	multicellDeepDiveCmd.Flags().BoolVar(&showAscii, "ascii", false, "also print the ascii power curve")

	powerCmd := &cobra.Command{
		Use:   "power [object]",
		Short: "read a power table from the R session and print its curve",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPower,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list captured plots",
		RunE:  listPlots,
	}

	showCmd := &cobra.Command{
		Use:   "show [plot_id]",
		Short: "re-display a captured plot without touching R",
		Args:  cobra.ExactArgs(1),
		RunE:  showPlot,
	}

	exportCmd := &cobra.Command{
		Use:   "export [plot_id]",
		Short: "export plot metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPlot,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [variant]",
		Short: "list power presets (market, multicell)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for variant: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "interactive plot session",
		RunE:  runTUI,
	}

	rootCmd.AddCommand(plotCmd, marketCmd, deepDiveCmd, multicellCmd,
		multicellDeepDiveCmd, powerCmd, listCmd, showCmd, exportCmd,
		presetsCmd, tuiCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file (when given) with CLI flag overrides.
// Flags that were set explicitly win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("inline") || configFile == "" {
		cfg.Display.Inline = inline
	}
	if flags.Changed("mono") {
		cfg.Display.Mono = mono
	}
	if flags.Changed("term-width") {
		cfg.Display.TermWidth = termWidth
	}
	if flags.Changed("r") {
		cfg.R.Binary = rBinary
	}
	if flags.Changed("workspace") {
		cfg.R.Workspace = workspace
	}
	if flags.Changed("setup") {
		cfg.R.Setup = setupFile
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("lookback") {
		cfg.Power.Lookback = lookback
		cfg.MulticellPower.Lookback = lookback
	}
	return cfg, nil
}

// openSession starts R and binds the caller-provided datasets.
func openSession(cfg *config.Config, log *zap.Logger) (*rbridge.Session, error) {
	sess, err := rbridge.NewSession(rbridge.Options{
		Binary: cfg.R.Binary,
		Args:   cfg.R.Args,
		Dir:    cfg.R.Dir,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	if cfg.R.Workspace != "" {
		script, err := rscript.LoadWorkspace(cfg.R.Workspace)
		if err == nil {
			err = sess.Execute(context.Background(), script)
		}
		if err != nil {
			sess.Close()
			return nil, err
		}
	}
	if cfg.R.Setup != "" {
		script, err := rscript.SourceFile(cfg.R.Setup)
		if err == nil {
			err = sess.Execute(context.Background(), script)
		}
		if err != nil {
			sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

func chooseDisplayer(cfg *config.Config, log *zap.Logger) display.Displayer {
	if cfg.Display.Inline {
		return &display.Inline{Width: cfg.Display.TermWidth, Mono: cfg.Display.Mono}
	}
	return &display.Viewer{
		Command: display.ParseViewer(cfg.Display.Viewer),
		Logger:  log,
	}
}

func objects(cfg *config.Config) rscript.Objects {
	return rscript.Objects{
		Data:       cfg.Objects.Data,
		Selections: cfg.Objects.Selections,
		Markets:    cfg.Objects.Markets,
	}
}

func captureOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		Width:      cfg.Plot.Width,
		Height:     cfg.Plot.Height,
		PointSize:  cfg.Plot.PointSize,
		Background: cfg.Plot.Background,
	}
}

func powerParams(p config.PowerConfig) rscript.PowerParams {
	return rscript.PowerParams{
		EffectFrom: p.EffectFrom,
		EffectTo:   p.EffectTo,
		EffectStep: p.EffectStep,
		CPIC:       p.CPIC,
		SideOfTest: p.SideOfTest,
	}
}

func applyPreset(cmd *cobra.Command, cfg *config.Config, variant string) error {
	if preset == "" {
		return nil
	}
	p := config.GetPreset(variant, preset)
	if p == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(variant))
	}
	if variant == "multicell" {
		cfg.MulticellPower = *p
	} else {
		cfg.Power = *p
	}
	// An explicit --lookback still wins over the preset.
	if cmd.Flags().Changed("lookback") {
		cfg.Power.Lookback = lookback
		cfg.MulticellPower.Lookback = lookback
	}
	return nil
}

// captureAndShow is the shared tail of every plotting command.
func captureAndShow(cmd *cobra.Command, cfg *config.Config, log *zap.Logger, plot rscript.Plot, meta storage.PlotMetadata) error {
	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	return captureAndShowWith(cmd, cfg, log, sess, plot, meta)
}

func captureAndShowWith(cmd *cobra.Command, cfg *config.Config, log *zap.Logger, sess *rbridge.Session, plot rscript.Plot, meta storage.PlotMetadata) error {
	start := time.Now()
	res, err := capture.Capture(cmd.Context(), sess, plot, captureOptions(cfg))
	if err != nil {
		return err
	}

	if err := chooseDisplayer(cfg, log).Display(res.Image, res.PNG, meta.Kind); err != nil {
		return err
	}

	if !noSave {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta.Width = cfg.Plot.Width
		meta.Height = cfg.Plot.Height
		id, err := st.Save(meta, res.PNG)
		if err != nil {
			return err
		}
		fmt.Println(viz.Caption.Render(fmt.Sprintf("captured in %v, saved as %s", time.Since(start).Round(time.Millisecond), id)))
	} else {
		fmt.Println(viz.Caption.Render(fmt.Sprintf("captured in %v", time.Since(start).Round(time.Millisecond))))
	}

	if showAscii {
		object := "power_data"
		if meta.Kind == "multicell-deep-dive" {
			object = "Power"
		}
		curve, err := power.Fetch(cmd.Context(), sess, object)
		if err != nil {
			return err
		}
		printCurve(curve)
	}
	return nil
}

func printCurve(curve *power.Curve) {
	fmt.Println()
	fmt.Println(curve.Ascii(80, 15))
	if mde, ok := curve.MDE(0.8); ok {
		fmt.Printf("minimum detectable effect (power >= 0.8): %.3f\n", mde)
	} else {
		fmt.Println("power never reaches 0.8 in the simulated range")
	}
	if mean, ok := curve.MeanPositive(); ok {
		fmt.Printf("mean power over positive effect sizes: %.3f\n", mean)
	}
}

func runGeoPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	plot, err := rscript.GeoPlot(args[0])
	if err != nil {
		return err
	}
	return captureAndShow(cmd, cfg, log, plot, storage.PlotMetadata{Kind: "plot", Expr: args[0]})
}

func runMarket(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	id, err := parseMarketID(args[0])
	if err != nil {
		return err
	}
	plot, err := rscript.MarketPlot(objects(cfg), id)
	if err != nil {
		return err
	}
	return captureAndShow(cmd, cfg, log, plot, storage.PlotMetadata{Kind: "market", MarketIDs: []int{id}})
}

func runDeepDive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPreset(cmd, cfg, "market"); err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	id, err := parseMarketID(args[0])
	if err != nil {
		return err
	}
	plot, err := rscript.MarketDeepDive(objects(cfg), id, cfg.Power.Lookback, powerParams(cfg.Power))
	if err != nil {
		return err
	}
	meta := storage.PlotMetadata{Kind: "deep-dive", MarketIDs: []int{id}, Lookback: cfg.Power.Lookback}
	return captureAndShow(cmd, cfg, log, plot, meta)
}

func runMulticell(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	ids, err := parseMarketIDs(args)
	if err != nil {
		return err
	}
	plot, err := rscript.MulticellPlot(objects(cfg), ids)
	if err != nil {
		return err
	}
	return captureAndShow(cmd, cfg, log, plot, storage.PlotMetadata{Kind: "multicell", MarketIDs: ids})
}

func runMulticellDeepDive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPreset(cmd, cfg, "multicell"); err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	ids, err := parseMarketIDs(args)
	if err != nil {
		return err
	}
	plot, err := rscript.MulticellDeepDive(objects(cfg), ids, cfg.MulticellPower.Lookback, powerParams(cfg.MulticellPower))
	if err != nil {
		return err
	}
	meta := storage.PlotMetadata{Kind: "multicell-deep-dive", MarketIDs: ids, Lookback: cfg.MulticellPower.Lookback}
	return captureAndShow(cmd, cfg, log, plot, meta)
}

func runPower(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	object := "power_data"
	if len(args) > 0 {
		object = args[0]
	}

	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	curve, err := power.Fetch(cmd.Context(), sess, object)
	if err != nil {
		return err
	}
	printCurve(curve)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	return tui.Run(sess, cfg, st)
}

func listPlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	plots, err := st.List()
	if err != nil {
		return err
	}

	if len(plots) == 0 {
		fmt.Println("no captured plots")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tMARKETS\tLOOKBACK\tSIZE")

	for _, p := range plots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%dx%d\n",
			p.ID,
			p.Kind,
			p.Timestamp.Format("2006-01-02 15:04:05"),
			p.MarketIDs,
			p.Lookback,
			p.Width, p.Height,
		)
	}

	return w.Flush()
}

func showPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	raw, err := st.LoadPNG(args[0])
	if err != nil {
		return err
	}

	img, err := decodePNG(raw)
	if err != nil {
		return err
	}
	return chooseDisplayer(cfg, log).Display(img, raw, meta.Kind)
}

func exportPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func decodePNG(raw []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(raw))
}

func parseMarketID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("market id must be an integer: %q", arg)
	}
	return id, nil
}

func parseMarketIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := parseMarketID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
