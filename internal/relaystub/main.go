// relaystub is a stand-in for a real nostr relay, just enough of its surface
// for harness tests: it reads the generated TOML config, listens on the
// configured address, serves the NIP-11 information document over HTTP and
// shuts down cleanly on an interrupt. The mode flag selects misbehaviours
// that a real relay only exhibits when something is wrong.
package main

import (
	"context"
	"errors"
	"fmt"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"net/http"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	toml "github.com/pelletier/go-toml/v2"

	o11yconfig "github.com/nostrkit/relayd/config/o11y"
	"github.com/nostrkit/relayd/httpserver"
	"github.com/nostrkit/relayd/httpserver/ginrouter"
	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/system"
	"github.com/nostrkit/relayd/termination"
)

type cli struct {
	Config string `name:"config" default:"" help:"Path to the relay TOML config file."`
	Mode   string `name:"mode" env:"RELAYSTUB_MODE" enum:"serve,hang,exit" default:"serve" help:"serve normally, hang without listening, or exit straight away."`
	Statsd string `name:"statsd" env:"STATSD_ADDR" default:"" help:"Optional statsd address for metrics."`
}

type relayConfig struct {
	Info     infoConfig     `toml:"info"`
	Network  networkConfig  `toml:"network"`
	Database databaseConfig `toml:"database"`
}

type infoConfig struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type networkConfig struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

type databaseConfig struct {
	DataDirectory string `toml:"data_directory"`
}

func main() {
	err := run()
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("Unexpected Error: ", err)
	}
	log.Println("exited 0")
}

func run() (err error) {
	c := cli{}
	kong.Parse(&c)

	if c.Config == "" {
		return errors.New("--config is required")
	}
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	switch c.Mode {
	case "exit":
		fmt.Fprintln(os.Stderr, "relaystub: refusing to serve, exiting")
		os.Exit(3)
	case "hang":
		fmt.Fprintln(os.Stderr, "relaystub: hanging without listening")
		select {}
	}

	ctx, o11yCleanup, err := o11yconfig.Setup(context.Background(), o11yconfig.Config{
		Statsd:         c.Statsd,
		Format:         "text",
		Service:        "relaystub",
		Version:        "dev",
		StatsNamespace: "test.relaystub",
	})
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)

	o11y.Log(ctx, "starting relaystub",
		o11y.Field("address", cfg.Network.Address),
		o11y.Field("port", cfg.Network.Port),
		o11y.Field("data_directory", cfg.Database.DataDirectory),
	)

	// The real relay opens its database on boot. Touch the same spot so
	// harness tests can see the config was honoured.
	err = os.WriteFile(filepath.Join(cfg.Database.DataDirectory, "nostr.db"), nil, 0o600)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sys := system.New(ctx)
	defer sys.Cleanup(ctx)

	err = loadRelay(ctx, cfg, sys)
	if err != nil {
		return err
	}

	return sys.Run(0)
}

func loadConfig(path string) (cfg relayConfig, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	err = toml.Unmarshal(b, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// the real relay's defaults
	if cfg.Network.Address == "" {
		cfg.Network.Address = "0.0.0.0"
	}
	if cfg.Network.Port == 0 {
		cfg.Network.Port = 8080
	}
	if cfg.Database.DataDirectory == "" {
		cfg.Database.DataDirectory = "."
	}
	return cfg, nil
}

func loadRelay(ctx context.Context, cfg relayConfig, sys *system.System) error {
	r := ginrouter.Default(ctx, "relaystub")
	r.GET("/", infoHandler(cfg))

	_, err := httpserver.Load(ctx, httpserver.Config{
		Name:    "relaystub",
		Addr:    fmt.Sprintf("%s:%d", cfg.Network.Address, cfg.Network.Port),
		Handler: r,
	}, sys)
	return err
}

// infoHandler serves the NIP-11 relay information document.
func infoHandler(cfg relayConfig) gin.HandlerFunc {
	doc := gin.H{
		"name":           cfg.Info.Name,
		"description":    cfg.Info.Description,
		"software":       "relaystub",
		"version":        "dev",
		"supported_nips": []int{1, 11},
	}
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/nostr+json")
		c.JSON(http.StatusOK, doc)
	}
}
