package main

import (
	"context"
	"flag"
	"os"
	"path"

	"ledgersync-backend/bootstrap"
	"ledgersync-backend/internal/cli"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range cli.Commands(&cli.Env{Open: cli.OpenFromConfig(cfg)}) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
