// Command brdfseed estimates initial material parameters from photos.
//
//	brdfseed [flags] image...
//
// For every image it writes brdf_params_<ms>.json to the output directory,
// and optionally a preview render and a palette swatch. With -simulate the
// mock optimizer runs from the estimate first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/setanarut/brdfseed"
	"github.com/setanarut/brdfseed/config"
	"github.com/setanarut/brdfseed/export"
	"github.com/setanarut/brdfseed/optimize"
	"github.com/setanarut/brdfseed/preview"
	"github.com/setanarut/brdfseed/session"
	"github.com/setanarut/brdfseed/utils"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	outDir := flag.String("out", "", "output directory (overrides output_dir)")
	simulate := flag.Bool("simulate", false, "run the mock optimizer after estimating")
	renderPreview := flag.Bool("preview", false, "write a preview render PNG")
	palette := flag.Bool("palette", false, "write a palette/albedo swatch PNG")
	seed := flag.Uint64("seed", 0, "random walk seed (0 = random)")
	verbose := flag.Bool("v", false, "debug logging")
	explain := flag.String("explain", "", "print a glossary entry and exit ("+strings.Join(brdfseed.GlossaryTerms(), ", ")+")")
	flag.Parse()

	if *explain != "" {
		e, ok := brdfseed.Explain(*explain)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown term %q\n", *explain)
			os.Exit(2)
		}
		fmt.Printf("%s\n\n%s\n", e.Title, e.Text)
		return
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: brdfseed [flags] image...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *seed != 0 {
		cfg.Optimizer.Seed = *seed
	}
	level, _ := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("create output dir", "dir", cfg.OutputDir, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := runner{
		cfg:      cfg,
		logger:   logger,
		simulate: *simulate,
		preview:  *renderPreview,
		palette:  *palette,
		subdirs:  flag.NArg() > 1,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range flag.Args() {
		path := path
		g.Go(func() error {
			return errors.Wrap(r.process(ctx, path), path)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("failed", "err", err)
		os.Exit(1)
	}
}

type runner struct {
	cfg      config.Config
	logger   *slog.Logger
	simulate bool
	preview  bool
	palette  bool
	// subdirs puts each image's outputs in a directory named after it.
	subdirs bool
}

func (r runner) outputDir(path string) (string, error) {
	if !r.subdirs {
		return r.cfg.OutputDir, nil
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Join(r.cfg.OutputDir, stem)
	return dir, errors.Wrap(os.MkdirAll(dir, 0o755), "create output dir")
}

func (r runner) process(ctx context.Context, path string) error {
	log := r.logger.With("image", filepath.Base(path))
	dir, err := r.outputDir(path)
	if err != nil {
		return err
	}
	img, err := utils.ReadImage(path)
	if err != nil {
		return err
	}
	buf, err := brdfseed.BufferFromImage(utils.PrepareSquare(img, r.cfg.AnalysisSize))
	if err != nil {
		return err
	}

	sess := session.New(optimize.NewRandomWalk(r.cfg.OptimizeOptions()), log)
	if err := sess.Load(buf); err != nil {
		return err
	}
	if r.simulate {
		every := max(r.cfg.Optimizer.Iterations/10, 1)
		cancel := sess.Subscribe(func(ev session.Event, st session.State) {
			if ev != session.EventStep || len(st.Losses)%every != 0 {
				return
			}
			log.Debug("iteration", "n", len(st.Losses), "loss", st.Losses[len(st.Losses)-1])
		})
		_, err := sess.Optimize(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	st := sess.State()
	for _, line := range brdfseed.Interpret(st.Params).Lines() {
		log.Info("interpretation", "note", line)
	}
	hist := optimize.History{Losses: st.Losses, Params: st.History}
	now := time.Now()
	rec := export.NewRecord(now, st.Params, hist)
	if st.Metrics != nil {
		_, best := hist.BestLoss()
		log.Info("simulated metrics",
			"psnr_db", fmt.Sprintf("%.2f", st.Metrics.PSNR),
			"ssim", fmt.Sprintf("%.3f", st.Metrics.SSIM),
			"loss", st.Metrics.Loss,
			"best_loss", best)
		for _, sp := range rec.Spread {
			log.Info("parameter spread", "param", sp.Name,
				"mean", fmt.Sprintf("%.4f", sp.Mean),
				"stddev", fmt.Sprintf("%.4f", sp.StdDev))
		}
	}

	out, err := export.SaveParameters(dir, rec)
	if err != nil {
		return err
	}
	log.Info("wrote parameters", "path", out)

	if r.preview {
		render := preview.Render(st.Params, r.cfg.PreviewOptions())
		out, err := export.SaveRender(dir, render, now)
		if err != nil {
			return err
		}
		log.Info("wrote preview", "path", out)
	}
	if r.palette && r.cfg.Palette.Colors > 0 {
		pal := utils.ExtractPalette(img, r.cfg.Palette.Colors, r.cfg.PaletteMethod())
		utils.SortPaletteByBrightness(pal)
		if i := utils.NearestPaletteColor(pal, st.Params.Albedo); i >= 0 {
			log.Debug("closest palette tone", "index", i, "hex", pal[i].Hex())
		}
		out := filepath.Join(dir, fmt.Sprintf("brdf_swatch_%d.png", now.UnixMilli()))
		if err := utils.SaveSwatch(pal, st.Params.Albedo, 64, out); err != nil {
			return err
		}
		log.Info("wrote swatch", "path", out)
	}
	return nil
}
