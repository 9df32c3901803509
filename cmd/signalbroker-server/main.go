package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"signalbroker/internal/auth"
	"signalbroker/internal/broker"
	"signalbroker/internal/config"
	"signalbroker/internal/events"
	"signalbroker/internal/logging"
	"signalbroker/internal/provider"
	"signalbroker/internal/repository"
	"signalbroker/internal/repository/memstore"
	"signalbroker/internal/repository/redisstore"
	"signalbroker/internal/server"
	"signalbroker/internal/session"
)

const Version = "1.0.0"

func main() {
	flag.CommandLine.SetOutput(os.Stdout)
	configPathFlag := flag.String("config_path", "configs/config.yaml", "path to the YAML config file, or a directory containing config.yaml")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "signalbroker-server %s\n\n", Version)
		_, _ = fmt.Fprintln(os.Stdout, "usage:")
		_, _ = fmt.Fprintln(os.Stdout, "  signalbroker-server [--config_path <path>] [--version] [--help]")
		_, _ = fmt.Fprintln(os.Stdout, "\nflags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		_, _ = fmt.Fprintln(os.Stdout, Version)
		return
	}

	cfg, err := config.Load(resolveConfigPath(*configPathFlag))
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Logging); err != nil {
		panic(err)
	}

	repos, pub, closeBacking := wireBacking(cfg)
	defer closeBacking()

	prov := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.AppSecret, cfg.Timing.ProviderTimeout, provider.DefaultBackoff())
	verifier := auth.NewVerifier(cfg.Auth.TokenSecret)

	// Broker.OnEvict and Manager reference each other, so the Manager
	// is constructed with the broker's evict hook and wired back in.
	b := broker.New(cfg, repos, prov, nil, pub, verifier)
	sessions := session.NewManager(int(cfg.Server.MaxMessageSize.Int64()), b.OnEvict)
	b.Sessions = sessions

	srv := server.New(cfg, b, sessions, Version)

	ctx, cancel := signalContext()
	defer cancel()

	logging.With(map[string]any{"port": cfg.Server.Port, "admin_port": cfg.Server.AdminPort}).Info("signalbroker starting")
	if err := srv.Run(ctx); err != nil {
		logging.With(map[string]any{"err": err}).Error("server exited")
		os.Exit(1)
	}
}

// wireBacking selects the repository and event-publisher implementation
// per redis.enabled: a shared *redis.Client backing both the durable
// store and the broker-event pub/sub channel, or the in-memory doubles
// for local development.
func wireBacking(cfg config.Config) (repository.Repositories, events.Publisher, func()) {
	if !cfg.Redis.Enabled {
		return memstore.New(), events.NewMemoryPublisher(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := redisstore.New(rdb, cfg.Redis.KeyPrefix)
	pub := events.NewRedisPublisher(rdb, events.Channel, 256)
	return store.Repositories(), pub, func() {
		pub.Close()
		_ = rdb.Close()
	}
}

func resolveConfigPath(p string) string {
	if p == "" {
		return "configs/config.yaml"
	}
	st, err := os.Stat(p)
	if err != nil {
		return p
	}
	if st.IsDir() {
		return filepath.Join(p, "config.yaml")
	}
	return p
}

// signalContext returns a Context cancelled on SIGINT/SIGTERM, driving
// the server's graceful shutdown sequence.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
