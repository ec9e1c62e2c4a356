package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/tokenizer"
)

var (
	tokenizeLocale string
	tokenizeMarkup bool
	tokenizeJSON   bool
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [text...]",
	Short: "Show the tokens the classifier sees for a text",
	Long: `Run text through normalization, segmentation, stop-word removal and
stemming. Without arguments the text is read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		text := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}

		tok, err := filter.NewTokenizer(cfg.Tokenizer, logger)
		if err != nil {
			return err
		}

		res, err := tok.Process(tokenizer.Input{Text: text, Locale: tokenizeLocale, IsMarkup: tokenizeMarkup})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if tokenizeJSON {
			return writeJSON(out, map[string]any{
				"locale":                res.Locale.Value,
				"locale_source":         res.Locale.Source.String(),
				"contractions_expanded": res.ContractionsExpanded,
				"stemmed":               res.Stemmed,
				"tokens":                tokenizer.Surfaces(res.Tokens),
			}, true)
		}

		fmt.Fprintf(out, "🌐 Locale: %s (%s)\n", res.Locale.Value, res.Locale.Source)
		fmt.Fprintf(out, "✂️  Stemmed: %v, contractions expanded: %v\n", res.Stemmed, res.ContractionsExpanded)
		fmt.Fprintf(out, "🔤 %d tokens:\n", len(res.Tokens))
		fmt.Fprintln(out, strings.Join(tokenizer.Surfaces(res.Tokens), " "))
		return nil
	},
}

func init() {
	tokenizeCmd.Flags().StringVarP(&tokenizeLocale, "locale", "l", "", "Locale hint, detected when empty")
	tokenizeCmd.Flags().BoolVar(&tokenizeMarkup, "html", false, "Treat the input as HTML")
	tokenizeCmd.Flags().BoolVar(&tokenizeJSON, "json", false, "Print JSON")
}
