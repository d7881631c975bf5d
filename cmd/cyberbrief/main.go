package main

import (
	"flag"
	"fmt"

	"github.com/cyberbrief/cyberbrief/internal/api"
	"github.com/cyberbrief/cyberbrief/internal/config"
	"github.com/cyberbrief/cyberbrief/internal/database"
	"github.com/cyberbrief/cyberbrief/internal/fswatcher"
	"github.com/cyberbrief/cyberbrief/internal/research"
	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")

	util.ParseFlags()

	util.PrintInfo("CyberBRIEF " + version.Version())

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		util.PrintError("failed to load configuration: " + err.Error())
		return
	}
	snapshot := cfg.Snapshot()

	store, err := database.Open(snapshot.Database.Path)
	if err != nil {
		util.PrintError("failed to open report store: " + err.Error())
		return
	}
	util.PrintInfo("Report store at " + snapshot.Database.Path)

	engine := research.NewEngine(cfg)
	app := api.NewServer(cfg, engine, store)

	// Hot-reload provider keys and limits when the config file changes.
	stop := make(chan struct{})
	defer close(stop)
	if err := fswatcher.Watch(*configPath, func(path string) {
		if err := cfg.Reload(path); err != nil {
			util.PrintWarning("config reload failed: " + err.Error())
		}
	}, stop); err != nil {
		util.PrintWarning("config watch disabled: " + err.Error())
	}

	addr := fmt.Sprintf(":%d", snapshot.Network.Port)
	util.PrintSuccess("Listening on " + addr)
	if err := app.Listen(addr); err != nil {
		util.PrintError("server stopped: " + err.Error())
	}
}
