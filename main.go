package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"git.lost.host/meutraa/vbeat/internal/broadcast"
	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/editor"
	"git.lost.host/meutraa/vbeat/internal/engine"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/history"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/mapper"
	"git.lost.host/meutraa/vbeat/internal/metrics"
	"git.lost.host/meutraa/vbeat/internal/parser"
	"git.lost.host/meutraa/vbeat/internal/render"
	"git.lost.host/meutraa/vbeat/internal/session"
	"git.lost.host/meutraa/vbeat/internal/theme"
	"git.lost.host/meutraa/vbeat/internal/transport"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app        = kingpin.New("vbeat", "Seven lane rhythm game and chart tool")
	configFile = app.Flag("config", "YAML config file").Short('c').Envar("VBEAT_CONFIG").String()
	dbPath     = app.Flag("db", "Score history database").Default("./scores.db").Envar("VBEAT_DB").String()
	logFile    = app.Flag("log", "Write logs here instead of stderr").String()
	difficulty = app.Flag("difficulty", "Chart difficulty, the first one when empty").Short('D').String()

	playCmd       = app.Command("play", "Play a chart").Default()
	playChart     = playCmd.Arg("chart", "Chart file, .json or .sm").Required().ExistingFile()
	playAudio     = playCmd.Flag("audio", "Audio track the clock follows").Short('a').ExistingFile()
	playRate      = playCmd.Flag("rate", "Playback rate").Default("1.0").Short('r').Float64()
	playOffset    = playCmd.Flag("offset", "Global offset").Default("0ms").Short('o').Duration()
	playDelay     = playCmd.Flag("delay", "Start delay").Default("1.5s").Short('d').Duration()
	playDevice    = playCmd.Flag("evdev", "Read keys from this /dev/input event device").String()
	playWatch     = playCmd.Flag("watch", "Reload the chart when the file changes").Short('w').Bool()
	playMetrics   = playCmd.Flag("metrics", "Serve Prometheus metrics on this address").Envar("VBEAT_METRICS").String()
	playBroadcast = playCmd.Flag("broadcast", "Append score summaries as JSON lines to this file").String()

	checkCmd   = app.Command("check", "Report malformed entries and colliding notes")
	checkChart = checkCmd.Arg("chart", "Chart file").Required().ExistingFile()

	convertCmd = app.Command("convert", "Write a chart as JSON")
	convertIn  = convertCmd.Arg("in", "Chart file").Required().ExistingFile()
	convertOut = convertCmd.Arg("out", "Output file, stdout when empty").String()

	historyCmd   = app.Command("history", "List stored runs")
	historyChart = historyCmd.Arg("chart", "Only runs of this chart").ExistingFile()
	historyLimit = historyCmd.Flag("limit", "Number of runs").Default("20").Short('n').Int()

	editCmd   = app.Command("edit", "Place, move and delete notes with the mouse")
	editChart = editCmd.Arg("chart", "Chart file, .json or .sm").Required().ExistingFile()
	editOut   = editCmd.Flag("out", "Save here, the chart itself when it is JSON").Short('o').String()

	replayCmd   = app.Command("replay", "Judge a stored run again")
	replayChart = replayCmd.Arg("chart", "Chart file the run was played on").Required().ExistingFile()
	replayID    = replayCmd.Arg("id", "Run id from history").Required().Int64()
)

func main() {
	app.Version("0.3.0")
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command); nil != err {
		slog.Error("vbeat failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, command string) error {
	cfg, err := config.LoadOrDefault(*configFile)
	if nil != err {
		return err
	}

	var w io.Writer = os.Stderr
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if nil != err {
			return fmt.Errorf("unable to open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	switch command {
	case playCmd.FullCommand():
		return play(ctx, cfg, logger)
	case checkCmd.FullCommand():
		return check(cfg, logger)
	case convertCmd.FullCommand():
		return convert(cfg, logger)
	case historyCmd.FullCommand():
		return list(ctx, cfg, logger)
	case replayCmd.FullCommand():
		return replay(ctx, cfg, logger)
	case editCmd.FullCommand():
		return edit(ctx, cfg, logger)
	}
	return fmt.Errorf("unknown command %q", command)
}

func play(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	opts := parser.OptionsFrom(cfg, logger)
	chart, err := parser.Open(*playChart, *difficulty, opts)
	if nil != err {
		return err
	}
	if err := parser.Fits(chart, cfg.Lanes.Count()); nil != err {
		return fmt.Errorf("unable to play %s: %w", *playChart, err)
	}
	cfg.Runtime.OffsetMs += playOffset.Milliseconds()

	var clock transport.Clock
	if *playAudio != "" {
		audio, err := transport.OpenAudio(*playAudio, *playRate, logger)
		if nil != err {
			return err
		}
		defer audio.Close()
		clock = audio
	} else {
		clock = transport.NewWall(-playDelay.Milliseconds(), chart.Last()+cfg.Judgement.MissWindowMs+1000, *playRate)
	}

	store, err := history.Open(*dbPath, logger)
	if nil != err {
		return err
	}
	defer store.Close()

	var publisher *broadcast.Publisher
	if *playBroadcast != "" {
		f, err := os.OpenFile(*playBroadcast, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if nil != err {
			return fmt.Errorf("unable to open broadcast file: %w", err)
		}
		defer f.Close()
		every := time.Duration(cfg.Runtime.BroadcastEveryMs) * time.Millisecond
		publisher = broadcast.NewPublisher(every, logger, broadcast.NewJSONLines(f))
	}

	var observer session.Observer
	var collector *metrics.Collector
	if *playMetrics != "" {
		collector = metrics.New(cfg)
		observer = collector
	}

	var r render.Renderer = render.NewTerminal(os.Stdout, cfg, mapper.New(cfg), &theme.DefaultTheme{}, logger)
	eng := engine.New(cfg, chart, engine.Options{
		Clock:     clock,
		Renderer:  r,
		Publisher: publisher,
		Saver:     store,
		Observer:  observer,
		Rate:      *playRate,
		Logger:    logger,
	})

	keys := input.NewKeyMap(cfg.Lanes.Keys)
	var source input.Source = input.NewTerminal(keys, input.DefaultQuiet, logger)
	if *playDevice != "" {
		source = input.NewEvdev(*playDevice, keys, logger)
	}

	if err := r.Init(); nil != err {
		return fmt.Errorf("unable to initialise renderer: %w", err)
	}
	deinit := sync.OnceValue(r.Deinit)
	defer deinit()

	if *playAudio != "" && *playDelay > 0 {
		select {
		case <-time.After(*playDelay):
		case <-ctx.Done():
			return nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	events := make(chan input.LaneEvent, 64)
	reload := make(chan *game.Chart)

	g.Go(func() error {
		return source.Run(gCtx, events)
	})
	if *playWatch {
		g.Go(func() error {
			return parser.Watch(gCtx, *playChart, *difficulty, opts, reload)
		})
	}
	if nil != collector {
		g.Go(func() error {
			return collector.Serve(gCtx, *playMetrics, logger)
		})
	}

	var result *session.Result
	g.Go(func() error {
		defer cancel()
		res, err := eng.Run(gCtx, events, reload)
		result = res
		return err
	})

	if err := g.Wait(); nil != err && !errors.Is(err, context.Canceled) {
		return err
	}
	deinit()
	if nil != result {
		printResult(os.Stdout, cfg, result)
	}
	return nil
}

func printResult(w io.Writer, cfg *config.Config, res *session.Result) {
	fmt.Fprintf(w, "%12v  %v\n", "Finish", res.Finish)
	fmt.Fprintf(w, "%12v  %v / %v\n", "Score", res.Score, res.MaxScore)
	fmt.Fprintf(w, "%12v  %.2f%% %v\n", "Accuracy", res.Accuracy*100, res.Grade)
	fmt.Fprintf(w, "%12v  %v\n", "Max combo", res.MaxCombo)
	for i, t := range cfg.Judgement.Tiers {
		if i < len(res.Counts) {
			fmt.Fprintf(w, "%12v  %v\n", t.Name, res.Counts[i])
		}
	}
	fmt.Fprintf(w, "%12v  %v\n", "MISS", res.Misses)
}

func check(cfg *config.Config, logger *slog.Logger) error {
	opts := parser.OptionsFrom(cfg, logger)
	var report *parser.Report
	var charts []*game.Chart
	f, err := os.Open(*checkChart)
	if nil != err {
		return fmt.Errorf("unable to open chart: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(*checkChart), ".sm") {
		charts, report, err = parser.NewSMParser(opts).Decode(f)
	} else {
		var c *game.Chart
		c, report, err = parser.NewJSONParser(opts).Decode(f)
		charts = []*game.Chart{c}
	}
	if nil != err {
		return fmt.Errorf("unable to parse chart %s: %w", *checkChart, err)
	}

	for i, c := range charts {
		taps, holds := c.Counts()
		fmt.Printf("%2v) %-12v %5v taps %5v holds  %8.3fs\n", i, c.Difficulty.Name, taps, holds, float64(c.Last())/1000)
	}
	for _, c := range report.Coercions {
		fmt.Println(c)
	}
	for _, p := range report.Collisions {
		fmt.Printf("notes %v and %v collide\n", p[0], p[1])
	}
	if !report.Clean() {
		return fmt.Errorf("%s: %d coercions, %d collisions", *checkChart, len(report.Coercions), len(report.Collisions))
	}
	return nil
}

func convert(cfg *config.Config, logger *slog.Logger) error {
	chart, err := parser.Open(*convertIn, *difficulty, parser.OptionsFrom(cfg, logger))
	if nil != err {
		return err
	}
	var w io.Writer = os.Stdout
	if *convertOut != "" {
		f, err := os.Create(*convertOut)
		if nil != err {
			return fmt.Errorf("unable to create %s: %w", *convertOut, err)
		}
		defer f.Close()
		w = f
	}
	return parser.Encode(w, chart)
}

func list(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := history.Open(*dbPath, logger)
	if nil != err {
		return err
	}
	defer store.Close()

	var records []history.Record
	if *historyChart != "" {
		chart, err := parser.Open(*historyChart, *difficulty, parser.OptionsFrom(cfg, logger))
		if nil != err {
			return err
		}
		records, err = store.Load(ctx, chart)
		if nil != err {
			return err
		}
		if len(records) > *historyLimit {
			records = records[:*historyLimit]
		}
	} else if records, err = store.Recent(ctx, *historyLimit); nil != err {
		return err
	}

	for _, r := range records {
		fmt.Printf("%4v) %v  %-10v %-9v %8v / %-8v %6.2f%% %-2v x%.2f\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Difficulty, r.Finish,
			r.Score, r.MaxScore, r.Accuracy*100, r.Grade, r.Rate)
	}
	return nil
}

func replay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := history.Open(*dbPath, logger)
	if nil != err {
		return err
	}
	defer store.Close()

	rec, err := store.Get(ctx, *replayID)
	if nil != err {
		return err
	}
	chart, err := parser.Open(*replayChart, rec.Difficulty, parser.OptionsFrom(cfg, logger))
	if nil != err {
		return err
	}
	res, err := history.Replay(cfg, chart, rec)
	if nil != err {
		return err
	}
	printResult(os.Stdout, cfg, res)
	if res.Score != rec.Score {
		logger.Warn("replay differs from the stored run",
			slog.Int64("stored", rec.Score),
			slog.Int64("replayed", res.Score))
	}
	return nil
}

func edit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	chart, err := parser.Open(*editChart, *difficulty, parser.OptionsFrom(cfg, logger))
	if nil != err {
		return err
	}
	out := *editOut
	if out == "" {
		out = strings.TrimSuffix(*editChart, filepath.Ext(*editChart)) + ".json"
	}
	save := func(e *editor.Editor) error {
		f, err := os.Create(out)
		if nil != err {
			return fmt.Errorf("unable to create %s: %w", out, err)
		}
		if err := e.Save(f); nil != err {
			f.Close()
			return err
		}
		return f.Close()
	}

	m := mapper.New(cfg)
	r := render.NewTerminal(os.Stdout, cfg, m, &theme.DefaultTheme{}, logger)
	ed := editor.New(cfg, m, chart, logger)
	driver := editor.NewDriver(ed, r, cfg.Speed, save, logger)

	if err := r.Init(); nil != err {
		return fmt.Errorf("unable to initialise renderer: %w", err)
	}
	deinit := sync.OnceValue(r.Deinit)
	defer deinit()
	if err := r.EnableMouse(); nil != err {
		return fmt.Errorf("unable to enable mouse reporting: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan input.TermEvent, 64)
	// A read on stdin cannot be interrupted, the reader is left behind when
	// the editor closes
	go func() {
		defer cancel()
		if err := input.ReadTerminal(runCtx, os.Stdin, events); nil != err {
			logger.Error("terminal input failed", slog.String("error", err.Error()))
		}
	}()

	if err := driver.Run(runCtx, events); nil != err {
		return err
	}
	deinit()
	if ed.Dirty() {
		logger.Warn("closed with unsaved changes", slog.String("chart", *editChart))
	}
	return nil
}
