package main

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/checker"
	"github.com/evetools-dev/eve-tools/pkg/client"
	"github.com/evetools-dev/eve-tools/pkg/logging"
	"github.com/evetools-dev/eve-tools/pkg/sde"
	"github.com/evetools-dev/eve-tools/pkg/token"
)

var rootCmd = &cobra.Command{
	Use:           "esi-fetch",
	Short:         "Fetch data from the EVE Online ESI API",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default $HOME/.esi-fetch.yaml)")
	pf.String("base-url", client.DefaultBaseURL, "ESI base URL")
	pf.String("user-agent", "eve-tools/esi-fetch", "User-Agent sent with every request")
	pf.String("redis-addr", "", "redis address for caching (empty: in-memory cache)")
	pf.String("token-file", "", "token document for authenticated endpoints")
	pf.String("app-file", "", "application registry for authenticated endpoints")
	pf.String("sde-file", "", "invTypes JSON export for local admission checks")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.Bool("log-pretty", false, "human-readable console logging")
	pf.Int("max-concurrency", 100, "concurrent requests during fan-outs")

	for _, name := range []string{
		"base-url", "user-agent", "redis-addr", "token-file", "app-file",
		"sde-file", "log-level", "log-pretty", "max-concurrency",
	} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".esi-fetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("ESI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func setupLogger() zerolog.Logger {
	return logging.Setup(logging.Config{
		Level:  viper.GetString("log-level"),
		Pretty: viper.GetBool("log-pretty"),
	})
}

// buildClient assembles the client from the resolved configuration. The
// returned cleanup persists token stores and closes the redis connection.
func buildClient(logger zerolog.Logger) (*client.Client, func(), error) {
	var (
		store   cache.Store
		cleanup = func() {}
	)
	if addr := viper.GetString("redis-addr"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		store = cache.NewRedisStore(rdb)
		cleanup = func() { _ = rdb.Close() }
	} else {
		store = cache.NewMemoryStore()
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = viper.GetString("base-url")
	cfg.UserAgent = viper.GetString("user-agent")
	cfg.MaxConcurrency = viper.GetInt("max-concurrency")
	cfg.Cache = store
	cfg.Logger = logger

	chkCfg := checker.Config{
		Store:  store,
		Board:  checker.NewStatusBoard("", nil, logger),
		Logger: logger,
	}
	if sdePath := viper.GetString("sde-file"); sdePath != "" {
		table, err := sde.LoadTypeTable(sdePath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load sde: %w", err)
		}
		chkCfg.SDE = table
	}
	cfg.Checker = checker.New(chkCfg)

	if appPath := viper.GetString("app-file"); appPath != "" {
		apps, err := token.LoadApplications(appPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load applications: %w", err)
		}
		cfg.Apps = apps
		cfg.Issuer = &token.RefreshIssuer{}
		cfg.TokenPath = viper.GetString("token-file")
	}

	c, err := client.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	redisCleanup := cleanup
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to persist token stores")
		}
		redisCleanup()
	}, nil
}
