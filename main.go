/*
Lumen renders a grid of spinning meshes with the Vulkan frame engine.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/testbed"
)

func main() {
	configPath := flag.String("config", "lumen.toml", "path to the TOML configuration")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		core.LogWarn("%s not found, using defaults", configPath)
		cfg = config.Default()
		configPath = ""
	case err != nil:
		core.LogError("invalid configuration: %s", err.Error())
		return 1
	}
	core.SetLogLevel(core.ParseLogLevel(cfg.Log.Level))

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	e, err := engine.New(cfg, configPath, testbed.NewTestGame(cfg))
	if err != nil {
		core.LogError("%s", err)
		return 1
	}

	status := 0
	if err := e.Initialize(ctx); err != nil {
		core.LogError("initialization failed: %s", err.Error())
		status = 1
	} else if err := e.Run(ctx); err != nil {
		logRunError(err)
		status = 1
	}

	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err.Error())
		status = 1
	}
	return status
}

// logRunError reports why the loop stopped. Fatal errors carry their own
// prefix.
func logRunError(err error) {
	if core.IsFatal(err) {
		core.LogError("%s", err)
		return
	}
	core.LogError("engine stopped: %s", err)
}
