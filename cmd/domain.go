package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/homograph"
)

var (
	domainDisplay    string
	domainContent    string
	domainReputation float64
	domainJSON       bool
)

var domainCmd = &cobra.Command{
	Use:   "domain <domain...>",
	Short: "Score domains for homograph and brand impersonation risk",
	Long: `Analyze domain names for confusable characters, mixed scripts, brand
look-alikes and suspicious context.

Examples:
  spamscan domain xn--pple-43d.com
  spamscan domain paypa1.com --display "www.paypal.com" --reputation 0.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		analyzer := filter.NewAnalyzer(cfg.Homograph, logger)

		hctx := homograph.Context{DisplayText: domainDisplay, Content: domainContent}
		if cmd.Flags().Changed("reputation") {
			hctx.SenderReputation = homograph.Reputation(domainReputation)
		}

		out := cmd.OutOrStdout()
		reports := make([]homograph.Report, 0, len(args))
		for _, d := range args {
			reports = append(reports, analyzer.Analyze(d, hctx))
		}
		if domainJSON {
			return writeJSON(out, reports, true)
		}

		for _, r := range reports {
			icon := "✅"
			switch {
			case r.RiskScore >= homograph.HighRiskThreshold:
				icon = "🚨"
			case r.RiskScore >= homograph.MediumRiskThreshold:
				icon = "⚠️"
			case r.RiskScore >= homograph.LowRiskThreshold:
				icon = "🔍"
			}
			fmt.Fprintf(out, "%s %s  risk %.2f  confidence %.2f  idn %v\n",
				icon, r.Domain, r.RiskScore, r.Confidence, r.IsInternationalized)
			if len(r.RiskFactors) > 0 {
				fmt.Fprintf(out, "   factors: %s\n", strings.Join(r.RiskFactors, ", "))
			}
			for _, rec := range r.Recommendations {
				fmt.Fprintf(out, "   - %s\n", rec)
			}
		}
		return nil
	},
}

func init() {
	domainCmd.Flags().StringVar(&domainDisplay, "display", "", "Link text the domain was shown behind")
	domainCmd.Flags().StringVar(&domainContent, "content", "", "Message text around the link")
	domainCmd.Flags().Float64Var(&domainReputation, "reputation", 1, "Sender reputation in [0,1]")
	domainCmd.Flags().BoolVar(&domainJSON, "json", false, "Print JSON reports")
}
