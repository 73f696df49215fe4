package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/cagewatch/internal/keyword"
)

func newMatchCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "match [text...]",
		Short: "Match the keyword vocabulary against saved or inline text",
		Long: `Runs the keyword matcher offline, e.g. against the visible_text.txt dump of an
earlier run. Matches are printed one per line in vocabulary order. State is
neither read nor written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			switch {
			case file != "":
				// #nosec G304 -- path is supplied by the operator.
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				text = string(data)
			case len(args) > 0:
				text = strings.Join(args, " ")
			default:
				return fmt.Errorf("either --file or inline text is required")
			}

			found := keyword.Match(text, keyword.DefaultVocabulary).Sorted(keyword.DefaultVocabulary)
			for _, kw := range found {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "text file to scan")
	return cmd
}

func newKeywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Print the keyword vocabulary",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, kw := range keyword.DefaultVocabulary {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
		},
	}
}
