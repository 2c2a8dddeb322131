package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"totchain/config"
	"totchain/core"
	"totchain/eventsink"
	"totchain/native/pool"
	"totchain/observability"
	"totchain/observability/logging"
	"totchain/rpc"
	"totchain/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	env := flag.String("env", "", "deployment environment label for log lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("totd", *env, logging.FileConfig{}).Error("load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	logger := logging.Setup("totd", *env, logging.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		logger.Error("build node", "err", err)
		os.Exit(1)
	}
	node.SetLogger(logger)
	node.SetMetrics(observability.NewMetrics(prometheus.DefaultRegisterer))

	sink, err := eventsink.Open(filepath.Join(cfg.DataDir, "events.db"), logger)
	if err != nil {
		logger.Error("open event sink", "err", err)
		os.Exit(1)
	}
	defer sink.Close()
	node.Subscribe(sink)

	authority, ok := bootstrap(cfg, node, logger)
	if !ok {
		os.Exit(1)
	}

	token := cfg.ResolveAdminToken()
	if token == "" {
		logger.Warn("no admin token configured, administrative RPC is disabled",
			"env", config.AdminTokenEnv)
	}

	server := rpc.NewServer(node, authority, token, cfg.RateLimitPerMinute, logger)
	server.SetEventSink(sink)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

// bootstrap parses the configured role addresses and, when the full genesis
// parameter set is present, performs the one-time initialization. A node that
// is already initialized keeps running with its stored state.
func bootstrap(cfg *config.Config, node *core.Node, logger *slog.Logger) ([20]byte, bool) {
	var authority [20]byte
	if cfg.AuthorityAddress == "" {
		return authority, true
	}
	authority, err := config.ParseAddress(cfg.AuthorityAddress)
	if err != nil {
		logger.Error("parse authority address", "err", err)
		return authority, false
	}
	if cfg.TreasuryAddress == "" || cfg.CollectorAddress == "" || len(cfg.PoolAccounts) == 0 {
		return authority, true
	}
	treasury, err := config.ParseAddress(cfg.TreasuryAddress)
	if err != nil {
		logger.Error("parse treasury address", "err", err)
		return authority, false
	}
	collector, err := config.ParseAddress(cfg.CollectorAddress)
	if err != nil {
		logger.Error("parse collector address", "err", err)
		return authority, false
	}
	accounts := make(map[pool.Kind][20]byte, len(cfg.PoolAccounts))
	for _, kind := range pool.Kinds() {
		raw, ok := cfg.PoolAccounts[kind.String()]
		if !ok {
			logger.Error("missing pool account in config", "pool", kind.String())
			return authority, false
		}
		addr, err := config.ParseAddress(raw)
		if err != nil {
			logger.Error("parse pool account", "pool", kind.String(), "err", err)
			return authority, false
		}
		accounts[kind] = addr
	}
	err = node.InitGenesis(core.Genesis{
		Authority:    authority,
		Treasury:     treasury,
		Collector:    collector,
		PoolAccounts: accounts,
	})
	if errors.Is(err, core.ErrGenesisDone) {
		return authority, true
	}
	if err != nil {
		logger.Error("genesis initialization", "err", err)
		return authority, false
	}
	logger.Info("genesis initialized from config")
	return authority, true
}
