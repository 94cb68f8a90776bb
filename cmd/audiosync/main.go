package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/audiosync/logging"
	"github.com/RyanBlaney/audiosync/syncpoint"
	"github.com/RyanBlaney/audiosync/syncpoint/config"
	"github.com/RyanBlaney/audiosync/transcode"
	"github.com/alecthomas/kong"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version         bool     `short:"v" help:"Show version information"`
	Config          string   `short:"c" type:"path" help:"Path to JSON analyzer config (optional)"`
	WindowSize      int      `name:"window-size" short:"w" help:"Frames in the rolling history"`
	ShortWindowSize int      `name:"short-window-size" short:"s" help:"Newest frames in the short window"`
	Cooldown        float64  `help:"Seconds before another sync point can trigger"`
	FFTSamples      int      `name:"fft-samples" help:"Samples per analysis frame"`
	Width           int      `help:"Columns of the divergence graph" default:"72"`
	DisplayWidth    int      `name:"display-width" help:"Columns the frame overlap is derived for (analysis resolution, independent of --width)"`
	Overlap         *int     `help:"Explicit frame overlap in samples (0 disables overlap)"`
	Split           bool     `help:"Analyse every channel instead of the first only"`
	Warmup          string   `help:"Rolling sum warm-up mode (exact or bootstrap)"`
	JSON            bool     `name:"json" help:"Print results as JSON"`
	LogLevel        string   `name:"log-level" help:"debug, info, warn or error" default:"warn"`
	Files           []string `arg:"" name:"files" help:"Audio files to analyse, or - for stdin" optional:""`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("audiosync"),
		kong.Description("Locate sync points in audio recordings"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	if cliArgs.Version {
		printVersion(version)
		os.Exit(0)
	}

	if len(cliArgs.Files) == 0 {
		printError("No input files specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cliArgs.LogLevel)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	logging.SetLevel(level)

	cfg, err := cliArgs.analyzerConfig()
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder := transcode.NewDecoder(nil)

	failed := 0
	var reports []fileReport
	for _, path := range cliArgs.Files {
		result, err := analyseFile(runCtx, decoder, cfg, path, os.Stdin)
		if err != nil {
			printError(fmt.Sprintf("%s: %v", path, err))
			failed++
			continue
		}

		if cliArgs.JSON {
			reports = append(reports, newFileReport(path, result))
			continue
		}
		fmt.Println(renderReport(path, result, cliArgs.Width))
	}

	if cliArgs.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			printError(err.Error())
			os.Exit(1)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// analyzerConfig loads the config file, if any, and applies flag overrides
func (c *CLI) analyzerConfig() (*config.AnalyzerConfig, error) {
	cfg := config.DefaultAnalyzerConfig()
	if c.Config != "" {
		loaded, err := config.LoadAnalyzerConfig(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.WindowSize > 0 {
		cfg.Settings.WindowSize = c.WindowSize
	}
	if c.ShortWindowSize > 0 {
		cfg.Settings.ShortWindowSize = c.ShortWindowSize
	}
	if c.Cooldown > 0 {
		cfg.Settings.CooldownDuration = c.Cooldown
	}
	if c.FFTSamples > 0 {
		cfg.FFTSamples = c.FFTSamples
	}
	if c.DisplayWidth > 0 {
		cfg.DisplayWidth = c.DisplayWidth
	}
	if c.Overlap != nil {
		cfg.Overlap = *c.Overlap
	}
	if c.Split {
		cfg.SplitChannels = true
	}
	if c.Warmup != "" {
		cfg.Warmup = config.WarmupMode(c.Warmup)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stdinPath names standard input on the command line
const stdinPath = "-"

func decode(ctx context.Context, decoder *transcode.Decoder, path string, stdin io.Reader) (*transcode.AudioData, error) {
	if path != stdinPath {
		return decoder.DecodeFile(ctx, path)
	}

	audio, err := decoder.DecodeReader(ctx, stdin)
	if err != nil {
		return nil, err
	}
	audio.Source = "stdin"
	return audio, nil
}

func analyseFile(ctx context.Context, decoder *transcode.Decoder, cfg *config.AnalyzerConfig, path string, stdin io.Reader) (*syncpoint.Result, error) {
	audio, err := decode(ctx, decoder, path, stdin)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	host := syncpoint.NewMemoryHost()
	host.Load(syncpoint.BufferFromAudio(audio))

	analyzer, err := syncpoint.New(host, cfg)
	if err != nil {
		return nil, err
	}
	defer analyzer.Destroy()

	if err := analyzer.Init(); err != nil {
		return nil, err
	}

	result := analyzer.Result()
	if result == nil {
		return nil, syncpoint.ErrMissingBuffer
	}
	return result, nil
}
