package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/automaton-io/automaton/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cli struct {
	configFile string
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "config/automaton.yaml", "Path to config file.")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	c.configFile = viper.GetString("config-file")
	if _, err := os.Stat(c.configFile); err != nil {
		return err
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a := agent.New(c.configFile)
	if err := a.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "automaton",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
