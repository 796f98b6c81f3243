package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-client/internal/config"
	"chat-client/internal/eventchannel"
	"chat-client/internal/gateway"
	"chat-client/internal/observability"
	"chat-client/internal/ops"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/transcript"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	state, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state db")
	}
	defer state.Close()

	publisher := telemetry.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Info().Str("mode", telemetry.PublisherMode(publisher)).Msg("telemetry publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, "client_events.audit", cfg.Environment)

	gw := gateway.NewHTTPGateway(cfg.BackendURL, state)
	channel := eventchannel.New(cfg.WebsocketURL, state, cfg.ReconnectRetries, cfg.ReconnectBackoff)

	identity, err := state.Identity(ctx)
	if err != nil && !errors.Is(err, store.ErrNoCredentials) {
		log.Fatal().Err(err).Msg("failed to read cached identity")
	}

	sync := transcript.New(gw, channel, identity, audit)
	sync.Start()
	defer sync.Close()

	unsubReconnect := channel.On(eventchannel.EventReconnected, func(_ json.RawMessage) {
		audit.Emit(context.Background(), "channel_reconnected", "", nil)
	})
	defer unsubReconnect()

	// Connect eagerly only when a credential survived the last run; otherwise
	// wait for the operator to authenticate.
	if _, err := state.AccessToken(ctx); err == nil {
		if err := channel.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("eager channel connect failed")
		}
	} else {
		log.Info().Msg("no stored credentials, event channel stays down")
	}

	router := ops.NewRouter(sync, audit, channel.Connected, cfg.Debug)
	go func() {
		if err := router.Run(cfg.OpsAddr); err != nil {
			log.Fatal().Err(err).Msg("ops server error")
		}
	}()
	log.Info().Str("addr", cfg.OpsAddr).Msg("ops server listening")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	channel.Disconnect()
}
