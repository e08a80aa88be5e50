package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/config"
	"nftmarket/core/epoch"
	"nftmarket/core/events"
	"nftmarket/native/auction"
	nativecommon "nftmarket/native/common"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/state"
	"nftmarket/storage"
)

const genesisPathEnv = "MARKET_GENESIS"

type genesisDoc struct {
	Accounts []struct {
		Address string `json:"address"`
		Balance string `json:"balance,omitempty"`
	} `json:"accounts"`
	Items []struct {
		Item  string `json:"item"`
		Owner string `json:"owner"`
	} `json:"items"`
}

// slogEmitter forwards engine events to the structured logger.
type slogEmitter struct {
	logger *slog.Logger
}

func (e slogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.logger.Info("market event", slog.String("type", evt.EventType()))
}

func main() {
	configFile := flag.String("config", "./market.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides MARKET_GENESIS)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(os.Getenv(genesisPathEnv))
	}
	if genesisPath != "" {
		if err := loadGenesis(manager, genesisPath); err != nil {
			logger.Error("Failed to load genesis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Genesis applied", slog.String("path", genesisPath))
	}

	clock, err := epoch.NewInterval(
		time.Unix(cfg.EpochGenesis, 0),
		time.Duration(cfg.EpochLength)*time.Second,
	)
	if err != nil {
		logger.Error("Failed to configure epoch clock", slog.Any("error", err))
		os.Exit(1)
	}

	engine := auction.NewEngine()
	engine.SetState(manager)
	engine.SetEpochSource(clock)
	engine.SetEmitter(slogEmitter{logger: logger})
	engine.SetQuota(nativecommon.Quota{
		MaxBidsPerEpoch: cfg.MaxBidsPerEpoch,
		MaxMKTPerEpoch:  cfg.MaxMKTPerEpoch,
	})

	if strings.TrimSpace(cfg.MetricsAddress) != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Metrics endpoint listening", slog.String("address", cfg.MetricsAddress))
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("Metrics endpoint failed", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(engine)
	logger.Info("Marketplace node starting",
		slog.String("rpc", cfg.RPCAddress),
		slog.Uint64("epoch", clock.Current()),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadGenesis seeds accounts, balances and item ownership. Re-applying the
// same document over an existing data dir is tolerated: accounts are
// re-registered in place and already minted items are skipped.
func loadGenesis(manager *state.Manager, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc genesisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse genesis %s: %w", path, err)
	}
	for _, entry := range doc.Accounts {
		addr, err := parseAddress(entry.Address)
		if err != nil {
			return fmt.Errorf("genesis account %q: %w", entry.Address, err)
		}
		if err := manager.RegisterAccount(addr); err != nil {
			return err
		}
		if strings.TrimSpace(entry.Balance) == "" {
			continue
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(entry.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("genesis account %q: invalid balance %q", entry.Address, entry.Balance)
		}
		if balance.Sign() > 0 {
			if err := manager.MintToken(addr, balance); err != nil {
				return err
			}
		}
	}
	for _, entry := range doc.Items {
		item, err := auction.ParseItemID(entry.Item)
		if err != nil {
			return fmt.Errorf("genesis item %q: %w", entry.Item, err)
		}
		owner, err := parseAddress(entry.Owner)
		if err != nil {
			return fmt.Errorf("genesis item %q owner: %w", entry.Item, err)
		}
		if _, minted := manager.ItemOwner(item); minted {
			continue
		}
		if err := manager.MintItem(item, owner); err != nil {
			return err
		}
	}
	return nil
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address encoding: %w", err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
