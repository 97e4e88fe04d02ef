package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kitts-ai/hud-live/pkg/config"
	"github.com/kitts-ai/hud-live/pkg/live"
	"github.com/kitts-ai/hud-live/pkg/stream/gemini"
	"github.com/kitts-ai/hud-live/pkg/transcript"
	"github.com/kitts-ai/hud-live/pkg/translate"
)

type runOptions struct {
	mode        string
	voice       string
	sourceLang  string
	targetLang  string
	systemAudio bool
	mute        bool
	muteOutput  bool
	wakeGated   bool
	fun         bool
	noRefine    bool
	micDevice   string
	videoDevice string
	exportPath  string
}

func runCmd() *cobra.Command {
	opt := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a live session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opt)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.mode, "mode", "assistant", "session mode: assistant or translator")
	f.StringVar(&opt.voice, "voice", "", "override the response voice")
	f.StringVar(&opt.sourceLang, "source-lang", translate.AutoDetect, "translator source language")
	f.StringVar(&opt.targetLang, "target-lang", "English", "translator target language")
	f.BoolVar(&opt.systemAudio, "system-audio", false, "capture system audio instead of the microphone (disables the noise gate)")
	f.BoolVar(&opt.mute, "mute", false, "start with the uplink muted")
	f.BoolVar(&opt.muteOutput, "mute-output", false, "start with the speaker muted")
	f.BoolVar(&opt.wakeGated, "wake-gated", false, "assistant dozes off when idle until a wake keyword is heard")
	f.BoolVar(&opt.fun, "fun", false, "use the chaotic persona")
	f.BoolVar(&opt.noRefine, "no-refine", false, "disable asynchronous cloud refinement")
	f.StringVar(&opt.micDevice, "mic-device", "", "capture device (platform specific, see 'hud-live devices')")
	f.StringVar(&opt.videoDevice, "video", "", "video capture device; empty disables video")
	f.StringVar(&opt.exportPath, "export", "", "write the conversation record to this file on exit")
	return cmd
}

func runSession(opt runOptions) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pc, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	cfg, err := sessionConfig(pc, opt)
	if err != nil {
		return err
	}

	deps := live.Deps{
		Dialer: &gemini.Dialer{
			APIKey:   pc.APIKey,
			Endpoint: pc.LiveEndpoint,
			Logger:   logger,
		},
		Sink:         newFFPlaySink(live.OutputSampleRate, logger),
		Connectivity: &live.ManualConnectivity{},
		Logger:       logger,
	}
	if cfg.Mode == live.ModeTranslator && cfg.CloudRefinement {
		tr, err := translate.NewGemini(context.Background(), pc.APIKey, pc.RefineModel)
		if err != nil {
			return err
		}
		deps.Translator = tr
	}

	svc := live.NewService(cfg, deps)
	defer svc.Close()
	svc.SetMuted(opt.mute)
	svc.SetOutputMuted(opt.muteOutput)

	mic, err := newCaptureSource(opt.micDevice, opt.systemAudio, logger)
	if err != nil {
		return err
	}
	var video live.VideoSource
	if opt.videoDevice != "" {
		video = newVideoSnapshotSource(opt.videoDevice, logger)
	}

	printer := newPrinter(os.Stdout, cfg.Mode)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range svc.Events() {
			printer.handle(ev)
		}
	}()

	if err := svc.Connect(mic, video); err != nil {
		return err
	}
	if video != nil {
		svc.SetVideoActive(true)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Fprintln(os.Stdout, "\nshutting down")

	var record func(*os.File) error
	if opt.exportPath != "" {
		if cfg.Mode == live.ModeTranslator {
			items := svc.Pool()
			record = func(f *os.File) error { return transcript.RenderPool(f, items) }
		} else {
			lines := svc.History()
			record = func(f *os.File) error { return transcript.RenderHistory(f, lines) }
		}
	}

	svc.Close()
	<-done

	if record != nil {
		f, err := os.Create(opt.exportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := record(f); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "conversation written to %s\n", opt.exportPath)
	}
	return nil
}

func sessionConfig(pc config.Config, opt runOptions) (live.SessionConfig, error) {
	cfg := live.DefaultSessionConfig(pc)
	switch strings.ToLower(opt.mode) {
	case "assistant":
		cfg.Mode = live.ModeAssistant
	case "translator":
		cfg.Mode = live.ModeTranslator
	default:
		return live.SessionConfig{}, fmt.Errorf("unknown mode %q", opt.mode)
	}
	if opt.voice != "" {
		cfg.Voice = opt.voice
	}
	cfg.SourceLang = opt.sourceLang
	cfg.TargetLang = opt.targetLang
	if opt.systemAudio {
		cfg.Input = live.InputSystemAudio
	}
	if opt.wakeGated {
		cfg.WakePolicy = live.WakeWordGated
	}
	cfg.FunPersona = opt.fun
	cfg.CloudRefinement = !opt.noRefine
	return cfg, nil
}
