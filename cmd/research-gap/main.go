// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-gap CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-gap/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the research-gap CLI.
var rootCmd = &cobra.Command{
	Use:   "research-gap",
	Short: "Crawl OpenAlex and score research topics against an institution",
	Long: `research-gap crawls the OpenAlex works API politely (one request at a
time, with backoff on throttling), flattens the responses into CSV tables,
merges per-year topic counts and scores how under-represented each topic is
locally compared to the global literature.

Typical flow: crawl grouped (or crawl cursor), merge, gap, serve.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}

		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-gap.yaml or ~/.config/research-gap/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of credential files (openalex-email)")
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-gap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-gap"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_GAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, diagnose(err))
		stop()
		os.Exit(1)
	}
}
