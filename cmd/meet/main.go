package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/dkeye/Meet/internal/adapters/devices"
	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/sessionapi"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	codecs, err := newCodecSelector()
	if err != nil {
		log.Fatal().Err(err).Msg("codec setup")
	}
	viewport, err := app.ParseViewport(cfg.Viewport)
	if err != nil {
		log.Fatal().Err(err).Msg("viewport")
	}
	api, err := sessionapi.New(cfg.SessionAPI.BaseURL, cfg.SessionAPI.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("session api")
	}

	clock := clockwork.NewRealClock()
	dev := devices.NewProvider(codecs, devices.Options{
		CameraID:     cfg.Media.CameraID,
		MicrophoneID: cfg.Media.MicrophoneID,
	})
	tr := rtc.NewTransport(rtc.Options{
		DisplayName:     cfg.DisplayName,
		ICEServers:      cfg.ICEServers,
		Devices:         dev,
		Codecs:          dev,
		Clock:           clock,
		QualityInterval: cfg.Health.QualityInterval,
		PingPeriod:      cfg.PingPeriod,
	})
	rec := &rtc.Recorder{Dir: cfg.Media.RecordDir}
	reg := app.NewRegistry(clock, &rtc.SinkFactory{Recorder: rec})
	rtc.NewMounter(reg, rec)

	o := orch.New(orch.Deps{
		API:       api,
		Transport: tr,
		Devices:   dev,
		Registry:  reg,
		Chat:      app.NewChat(clock, tr, app.NewRateLimiter(clock, cfg.Chat.RateLimit, cfg.Chat.RateInterval)),
		Health:    app.NewHealth(clock),
		Policy:    app.SimplePolicy{},
		Clock:     clock,
	}, orch.Options{
		SessionID:       cfg.SessionID,
		DisplayName:     cfg.DisplayName,
		EndedBy:         cfg.EndedBy,
		MediaRetryDelay: cfg.Media.RetryDelay,
		MediaRetries:    cfg.Media.Retries,
		APITimeout:      cfg.SessionAPI.Timeout,
		Viewport:        viewport,
	})

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	speaking := &app.SpeakingPoller{
		Clock:     clock,
		Source:    tr,
		Registry:  reg,
		Interval:  cfg.Health.SpeakingInterval,
		Threshold: cfg.Health.SpeakingThreshold,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		log.Info().Str("addr", addr).Str("session", cfg.SessionID).Msg("Meet client started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		if err := speaking.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.AutoJoin {
		p.Go(func(ctx context.Context) error {
			autoJoin(ctx, o)
			return nil
		})
	}
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdown(srv, tr)
		return nil
	})

	if err := p.Wait(); err != nil {
		log.Error().Err(err).Msg("client stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Client exited gracefully")
}

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000
	vpxParams.KeyFrameInterval = 30
	vpxParams.RateControlEndUsage = vpx.RateControlVBR

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = 32_000
	opusParams.Latency = opus.Latency20ms

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// autoJoin walks the pre-check unattended: default devices, implied consent.
func autoJoin(ctx context.Context, o *orch.Orchestrator) {
	st, err := o.PrepareDevices(ctx, core.DeviceRequest{Camera: true, Microphone: true})
	if err != nil {
		log.Error().Err(err).Str("module", "main").Msg("auto join: devices")
		return
	}
	if st.Error != "" {
		log.Warn().Str("module", "main").Str("devices", st.Error).Msg("auto join: joining with partial media")
	}
	if err := o.SetConsent(true); err != nil {
		log.Error().Err(err).Str("module", "main").Msg("auto join: consent")
		return
	}
	if err := o.Join(ctx); err != nil && !errors.Is(err, domain.ErrConnect) {
		log.Error().Err(err).Str("module", "main").Msg("auto join")
	}
}

// shutdown leaves the room without ending the session for everyone else.
func shutdown(srv *http.Server, tr core.Transport) {
	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := tr.Disconnect(ctx); err != nil && !errors.Is(err, domain.ErrNotConnected) {
		log.Error().Err(err).Msg("disconnect")
	}
}
