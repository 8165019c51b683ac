package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-gap/internal/dashboard"
	"github.com/pdiddy/research-gap/internal/gap"
	"github.com/pdiddy/research-gap/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gap dashboard over HTTP",
	Long: `Serve loads a gap score table and serves an HTML dashboard (scatter of
local vs global activity on a log scale, top opportunities, full table)
plus JSON endpoints under /api and the table itself at /download.csv.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", dashboard.DefaultAddr, "listen address")
	serveCmd.Flags().String("gap", defaultGapOutput, "gap score table to serve")
	serveCmd.Flags().String("local-label", dashboard.DefaultLocalLabel, "institution name shown in the dashboard")
	serveCmd.Flags().Int("max-local", dashboard.DefaultMaxLocal, "default upper bound on local activity")
	serveCmd.Flags().Int("opportunity-threshold", dashboard.DefaultOpportunityThreshold, "local count below which a topic is an opportunity")
	serveCmd.Flags().Int("top", dashboard.DefaultTopN, "number of opportunities shown")
	serveCmd.Flags().String("short-names", "", "YAML map of topic label to short chart label")

	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("serve.gap_path", serveCmd.Flags().Lookup("gap"))
	viper.BindPFlag("serve.local_label", serveCmd.Flags().Lookup("local-label"))
	viper.BindPFlag("serve.max_local", serveCmd.Flags().Lookup("max-local"))
	viper.BindPFlag("serve.opportunity_threshold", serveCmd.Flags().Lookup("opportunity-threshold"))
	viper.BindPFlag("serve.top_n", serveCmd.Flags().Lookup("top"))
	viper.BindPFlag("serve.short_names_file", serveCmd.Flags().Lookup("short-names"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	aliases, err := gap.LoadShortNames(viper.GetString("serve.short_names_file"))
	if err != nil {
		return err
	}
	srv, err := dashboard.Load(types.DashboardConfig{
		Addr:                 viper.GetString("serve.addr"),
		GapPath:              viper.GetString("serve.gap_path"),
		LocalLabel:           viper.GetString("serve.local_label"),
		MaxLocal:             viper.GetInt("serve.max_local"),
		OpportunityThreshold: viper.GetInt("serve.opportunity_threshold"),
		TopN:                 viper.GetInt("serve.top_n"),
		ShortNames:           aliases,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Serving dashboard on http://%s (Ctrl-C to stop)\n", srv.Addr())
	return srv.ListenAndServe(cmd.Context())
}
