package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"fedipay/internal/config"
	"fedipay/internal/fedimint"
	"fedipay/internal/fedimint/clientd"
	"fedipay/internal/lnurl"
	"fedipay/internal/nostr"
	"fedipay/internal/notify"
	"fedipay/internal/store"
	"fedipay/internal/zap"
)

func main() {
	configPath := flag.String("config", "", "path to fedipay.yaml")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("parse log level: %v", err)
	}
	logger.SetLevel(level)

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	registry := fedimint.NewRegistry()
	for _, fed := range cfg.Federations {
		registry.Register(fed.ID, clientd.New(fed.ClientdURL, cfg.ClientdPassword, fed.ID, logger))
		logger.Infof("registered federation %s via %s", fed.ID, fed.ClientdURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relaySvc, err := nostr.NewService(ctx, cfg.NostrSecretKey, cfg.Relays, logger)
	if err != nil {
		logger.Fatalf("connect relays: %v", err)
	}

	signer, err := zap.NewReceiptSigner(cfg.NostrSecretKey)
	if err != nil {
		logger.Fatalf("init receipt signer: %v", err)
	}

	notifier := notify.NewNotifier(registry, st, relaySvc, signer, notify.XMPPConfig{
		Address:    cfg.XMPP.Address,
		User:       cfg.XMPP.User,
		Password:   cfg.XMPP.Password,
		ChatServer: cfg.XMPP.ChatServer,
	}, logger)

	supervisor := lnurl.NewSupervisor(st, notifier, logger)

	handler := lnurl.NewHandler(lnurl.Config{
		Domain:          cfg.Domain,
		Port:            cfg.Port,
		MinSendableMsat: cfg.MinSendableMsat,
		MaxSendableMsat: cfg.MaxSendableMsat,
		NostrPubkey:     relaySvc.Pubkey(),
	}, st, registry, supervisor, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("serve: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	// In-flight watchers are abandoned on shutdown; terminal state is
	// persisted before delivery, so nothing settled is lost.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("bye")
}
