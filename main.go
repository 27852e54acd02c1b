package main

import (
	"os"

	"github.com/marbel89/chantbot/bot"
	"github.com/marbel89/chantbot/config"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd starts the bot
var rootCmd = &cobra.Command{
	Use:   "chantbot",
	Short: "Relay direct messages into a channel anonymously",
	Long: "chantbot asks the author of every direct message to confirm, then posts\n" +
		"the message to the anonymous channel and logs the original to the moderator channel.",
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.Infof("Anonymous channel: %s, mod log channel: %s", cfg.AnonymousChannelID, cfg.ModLogChannelID)
		return bot.Start(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (.env or yaml); defaults to ./config.* and the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
