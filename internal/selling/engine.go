package selling

import (
	"sort"
)

// Recommendation is the ranked outcome of one quiz submission: exactly one
// best option plus up to two distinct runners-up in descending fit order.
type Recommendation struct {
	Best      Option   `json:"best"`
	Secondary []Option `json:"secondary,omitempty"`
}

// secondaryThreshold is the minimum score an option needs to appear as a
// secondary recommendation. Options below it are noise, not alternatives.
const secondaryThreshold = 20.0

// maxSecondary caps the runner-up list.
const maxSecondary = 2

// Recommend scores every option against the answers and returns the ranked
// recommendation. Deterministic and total: any validated answer set yields
// exactly one best option. Invalid answers return ErrIncompleteAnswers.
func Recommend(answers QuizAnswers) (Recommendation, error) {
	if err := answers.Validate(); err != nil {
		return Recommendation{}, err
	}

	type ranked struct {
		option Option
		score  float64
	}

	scores := make([]ranked, 0, len(priorityOrder))
	for _, o := range priorityOrder {
		scores = append(scores, ranked{option: o, score: scoreOption(o, answers)})
	}

	// Descending score; ties fall back to the fixed priority order, never to
	// evaluation order.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return priorityRank[scores[i].option] < priorityRank[scores[j].option]
	})

	rec := Recommendation{Best: scores[0].option}
	for _, r := range scores[1:] {
		if len(rec.Secondary) == maxSecondary {
			break
		}
		if r.score < secondaryThreshold {
			break
		}
		rec.Secondary = append(rec.Secondary, r.option)
	}

	return rec, nil
}

// scoreOption applies the per-option scoring table. Weights are chosen so
// that urgency dominates for the cash paths, income goals dominate for
// seller financing, and the listing products compete on proceeds and
// willingness to show.
func scoreOption(o Option, a QuizAnswers) float64 {
	var s float64

	switch o {
	case OptionCashOffer:
		if a.Timeline == TimelineTwoWeeks {
			s += 50
		} else if a.Timeline == TimelineTwoMonths {
			s += 5
		}
		if a.Condition == ConditionNeedsWork {
			s += 20
		}
		if a.Goal == GoalCertainClose {
			s += 15
		}
		if !a.showingsOK() {
			s += 10
		}

	case OptionTwoPayment:
		if a.needsFundsEarly() && a.Timeline == TimelineTwoMonths {
			s += 20
		}
		if a.Goal == GoalCertainClose {
			s += 15
		}
		if a.Mortgage == MortgageSmallBalance {
			s += 10
		}

	case OptionSellerFinance:
		// Carrying a note requires real equity.
		if !a.hasEquity() {
			return 0
		}
		if a.Goal == GoalMonthlyIncome {
			s += 45
		}
		if a.Mortgage == MortgageFreeAndClear {
			s += 25
		}
		if a.Timeline == TimelineFlexible {
			s += 10
		}

	case OptionPriceLaunch:
		if a.Goal == GoalTopDollar {
			s += 25
		}
		if a.Timeline == TimelineTwoMonths {
			s += 15
		}
		if a.Condition == ConditionMoveInReady {
			s += 10
		}
		if a.showingsOK() {
			s += 10
		}

	case OptionUplist:
		if a.Goal == GoalTopDollar {
			s += 20
		}
		if !a.showingsOK() {
			s += 20
		}
		if a.Condition == ConditionMoveInReady {
			s += 10
		}

	case OptionEquityBridge:
		// Bridging advances the seller's own equity.
		if !a.hasEquity() {
			return 0
		}
		if a.needsFundsEarly() {
			s += 30
		}
		if !a.showingsOK() {
			s += 20
		}
		if a.Timeline == TimelineTwoMonths {
			s += 10
		}

	case OptionDirectList:
		if a.Goal == GoalTopDollar {
			s += 30
		}
		if a.showingsOK() {
			s += 20
		}
		if a.Timeline == TimelineFlexible {
			s += 15
		}
		if a.Condition != ConditionNeedsWork {
			s += 10
		}

	case OptionFullService:
		if a.Goal == GoalTopDollar {
			s += 25
		}
		if a.showingsOK() {
			s += 15
		}
		if a.Timeline == TimelineFlexible {
			s += 10
		}
		if a.Goal == GoalMinimalHassle {
			s += 10
		}
	}

	return s
}
