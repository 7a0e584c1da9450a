package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/rapport/internal/composer"
	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/internal/reviews"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Render every response template with sample data",
	Long: `Load the configured template set, render each template for a sample
negative, high urgency review in its category, and report templates that
fail to render.`,
	RunE: runTemplates,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLocal(configPath)
	if err != nil {
		return err
	}

	comp, err := composer.FromConfig(&cfg.Pipeline.Templates)
	if err != nil {
		return err
	}

	failed := renderTemplates(cmd.OutOrStdout(), comp)
	if failed > 0 {
		return fmt.Errorf("%d templates failed to render", failed)
	}
	return nil
}

func renderTemplates(w io.Writer, comp *composer.Composer) int {
	record := reviews.NewRecord("Jordan Lee", "jordan@example.com", "The package arrived late and damaged.")

	failed := 0
	for _, name := range comp.Templates() {
		cl := reviews.Classification{
			Sentiment:  reviews.SentimentNegative,
			Urgency:    reviews.UrgencyHigh,
			Confidence: 0.9,
			KeyIssues:  []string{"late delivery", "damaged package"},
		}
		if name != composer.DefaultKey {
			cl.Categories = []string{name}
		}

		msg, err := comp.Compose(record, cl)
		if err != nil {
			failed++
			fmt.Fprintf(w, "== %s: FAILED: %v\n\n", name, err)
			continue
		}

		fmt.Fprintf(w, "== %s (rendered with %s)\nSubject: %s\n\n%s\n\n", name, msg.Template, msg.Subject, msg.Body)
	}
	return failed
}
