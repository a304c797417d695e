package main

import (
	"context"
	"flag"

	"github.com/s33g/typedchat/internal/config"
	"github.com/s33g/typedchat/internal/mockapi"
)

func mock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to configuration file; scenarios reload when it changes")
	addr := fs.String("addr", "", "listen address, overrides mock.address")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	a, err := newApp(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mockapi.New(a.cfg.Mock, a.tokens, a.logger)

	if *cfgPath != "" {
		watcher, err := config.NewWatcher(*cfgPath, func(cfg *config.Config) error {
			server.Reload(cfg.Mock)
			return nil
		}, a.logger)
		if err != nil {
			return err
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	listen := a.cfg.Mock.Address
	if *addr != "" {
		listen = *addr
	}
	return server.Run(ctx, listen)
}
