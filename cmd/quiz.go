package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/access-realty/directlist/internal/selling"
)

var (
	quizTimeline  string
	quizCondition string
	quizGoal      string
	quizMortgage  string
	quizShowings  bool
	quizFunds     bool
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Run the selling-plan recommendation engine from the command line",
	Long: `Scores every selling option against the given answers and prints the
recommended plan with its display card, the way the quiz endpoint would
return it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		showings := quizShowings
		funds := quizFunds
		answers := selling.QuizAnswers{
			Timeline:        selling.Timeline(quizTimeline),
			Condition:       selling.Condition(quizCondition),
			Goal:            selling.Goal(quizGoal),
			Mortgage:        selling.MortgagePosition(quizMortgage),
			OpenToShowings:  &showings,
			NeedsFundsEarly: &funds,
		}

		rec, err := selling.Recommend(answers)
		if err != nil {
			return err
		}

		printCard := func(label string, o selling.Option) {
			card := selling.BuildOptionCard(o)
			fmt.Printf("%s: %s - %s\n", label, card.Title, card.Subtitle)
			for _, b := range card.Bullets {
				fmt.Printf("  • %s\n", b)
			}
		}

		printCard("Best", rec.Best)
		for _, o := range rec.Secondary {
			printCard("Also consider", o)
		}
		return nil
	},
}

func init() {
	quizCmd.Flags().StringVar(&quizTimeline, "timeline", "", "under_2_weeks | under_2_months | flexible")
	quizCmd.Flags().StringVar(&quizCondition, "condition", "", "needs_major_repairs | dated | move_in_ready")
	quizCmd.Flags().StringVar(&quizGoal, "goal", "", "top_dollar | monthly_income | certain_close | minimal_hassle")
	quizCmd.Flags().StringVar(&quizMortgage, "mortgage", "", "free_and_clear | small_balance | large_balance")
	quizCmd.Flags().BoolVar(&quizShowings, "showings", false, "open to showings")
	quizCmd.Flags().BoolVar(&quizFunds, "needs-funds-early", false, "needs part of the proceeds before close")
	rootCmd.AddCommand(quizCmd)
}
