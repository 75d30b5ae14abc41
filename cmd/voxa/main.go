// voxa: realtime voice conversation server.
// Speech in over WebSocket, transcription, a streamed model reply, and
// synthesized speech back out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxalabs/voxa/internal/config"
	"github.com/voxalabs/voxa/internal/log"
	"github.com/voxalabs/voxa/internal/metrics"
	"github.com/voxalabs/voxa/pkg/agent"
	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/session"
	"github.com/voxalabs/voxa/pkg/stt"
	"github.com/voxalabs/voxa/pkg/tts"
	"github.com/voxalabs/voxa/pkg/web"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Path to YAML config file")
	port       = flag.Int("port", 0, "HTTP server port (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log.Init(cfg.LogLevel)
	logger := log.With("service", "voxa", "version", version)
	logger.Info("starting", "port", cfg.Port)

	m := metrics.New()

	// Model backend
	if cfg.LLMAPIKey == "" {
		logger.Warn("no LLM API key configured; chat turns will fail")
	}
	llmClient, err := llm.NewClient(
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithBaseURL(cfg.LLMBaseURL),
		llm.WithModel(cfg.LLMModel),
		llm.WithLogger(logger),
	)
	if err != nil {
		logger.Error("llm client", "error", err)
		os.Exit(1)
	}
	defer llmClient.Close()

	// Synthesis backends: streaming for turns, REST as the fallback
	var streamTTS tts.StreamProvider
	var restTTS tts.Provider
	var murfWS *tts.MurfWS
	if cfg.MurfAPIKey != "" {
		murfWS, err = tts.NewMurfWS(
			tts.WithAPIKey(cfg.MurfAPIKey),
			tts.WithVoice(cfg.VoiceID),
			tts.WithSampleRate(cfg.SampleRate),
			tts.WithLogger(logger),
		)
		if err != nil {
			logger.Error("murf stream client", "error", err)
			os.Exit(1)
		}
		streamTTS = murfWS
		defer murfWS.Close()

		restTTS, err = tts.NewMurf(
			tts.WithAPIKey(cfg.MurfAPIKey),
			tts.WithVoice(cfg.VoiceID),
			tts.WithSampleRate(cfg.SampleRate),
			tts.WithLogger(logger),
		)
		if err != nil {
			logger.Error("murf rest client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no Murf API key configured; turns run text-only")
	}

	// Transcription sessions are opened per audio turn
	var sttFactory web.STTFactory
	if cfg.AssemblyAIKey != "" {
		sttFactory = func() (stt.Provider, error) {
			return stt.NewAssemblyAI(
				stt.WithAPIKey(cfg.AssemblyAIKey),
				stt.WithLogger(logger),
			)
		}
	} else {
		logger.Warn("no AssemblyAI API key configured; voice input disabled")
	}

	persistDir := ""
	if cfg.PersistAudio {
		persistDir = cfg.UploadDir
		if err := os.MkdirAll(persistDir, 0o755); err != nil {
			logger.Error("create upload dir", "error", err, "dir", persistDir)
			os.Exit(1)
		}
	}

	registry := session.NewRegistry(cfg.MaxHistory, persistDir, logger)
	defer registry.Close()

	orch := agent.New(llmClient, streamTTS, restTTS,
		agent.WithMetrics(m),
		agent.WithLogger(logger),
	)

	// Streamed audio flows from the synthesis socket into the turn that
	// owns its context
	if murfWS != nil {
		murfWS.OnAudioChunk = orch.HandleAudioChunk

		if err := murfWS.Connect(context.Background()); err != nil {
			logger.Warn("murf stream connect failed; will rely on fallback synthesis", "error", err)
		}
	}

	srv := web.NewServer(cfg.Port, web.Deps{
		Registry:     registry,
		Orchestrator: orch,
		STTFactory:   sttFactory,
		LLM:          llmClient,
		TTS:          restTTS,
		Metrics:      m,
		Logger:       logger,
		IdleTimeout:  cfg.SessionIdleTimeout,
		Debug:        *debug,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
