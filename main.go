package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hendrywilliam/splash/src/client"
	"github.com/hendrywilliam/splash/src/interactions"
	"github.com/hendrywilliam/splash/src/logger"
	"github.com/hendrywilliam/splash/src/structs"
	"github.com/hendrywilliam/splash/src/utils"
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGINT,
	syscall.SIGTERM,
}

var commands = []structs.AppCmd{
	{
		Name:        "say",
		Description: "Make the bot say something, only you will see it",
		Type:        structs.AppCmdTypeChatInput,
		Options: []structs.AppCmdOption{
			{Type: structs.AppCmdOptionTypeString, Name: "text", Description: "What to say", Required: true},
		},
	},
}

func say(ctx context.Context, i *interactions.Interaction) error {
	option, _ := i.Data.Option("text")
	text, ok := option.StringValue()
	if !ok || text == "" {
		text = "nothing to say"
	}
	return i.RespondMessage(ctx, text, true)
}

func main() {
	cfg, err := utils.LoadConfiguration()
	if err != nil {
		panic(err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	log := logger.New(os.Stdout, level, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	c, err := client.New(client.ArgumentsFromConfig(cfg, log))
	if err != nil {
		panic(err)
	}
	if err := c.Register("say", say); err != nil {
		panic(err)
	}
	if _, err := c.SyncCommands(ctx, 0, commands); err != nil {
		log.Error("failed to sync application commands", "error", err)
	}
	if err := c.Run(ctx); err != nil {
		log.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}
