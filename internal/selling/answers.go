package selling

import (
	"github.com/rotisserie/eris"
)

// ErrIncompleteAnswers is returned when a quiz submission is missing or
// carries unrecognized answers. The engine never guesses a recommendation
// from partial input; the caller re-prompts instead.
var ErrIncompleteAnswers = eris.New("selling: incomplete quiz answers")

// Timeline is how soon the seller must close.
type Timeline string

const (
	TimelineTwoWeeks  Timeline = "under_2_weeks"
	TimelineTwoMonths Timeline = "under_2_months"
	TimelineFlexible  Timeline = "flexible"
)

// Condition describes the property's state.
type Condition string

const (
	ConditionNeedsWork   Condition = "needs_major_repairs"
	ConditionDated       Condition = "dated"
	ConditionMoveInReady Condition = "move_in_ready"
)

// Goal is the seller's primary financial goal.
type Goal string

const (
	GoalTopDollar     Goal = "top_dollar"
	GoalMonthlyIncome Goal = "monthly_income"
	GoalCertainClose  Goal = "certain_close"
	GoalMinimalHassle Goal = "minimal_hassle"
)

// MortgagePosition is the seller's remaining mortgage balance bracket.
type MortgagePosition string

const (
	MortgageFreeAndClear MortgagePosition = "free_and_clear"
	MortgageSmallBalance MortgagePosition = "small_balance"
	MortgageLargeBalance MortgagePosition = "large_balance"
)

// QuizAnswers is the structured input to the decision engine. The quiz UI is
// responsible for collecting every field; booleans are pointers so an
// unanswered question is distinguishable from "no".
type QuizAnswers struct {
	Timeline        Timeline         `json:"timeline"`
	Condition       Condition        `json:"condition"`
	Goal            Goal             `json:"goal"`
	Mortgage        MortgagePosition `json:"mortgage"`
	OpenToShowings  *bool            `json:"open_to_showings"`
	NeedsFundsEarly *bool            `json:"needs_funds_early"`
}

// Validate checks that every question is answered with a recognized value.
func (a QuizAnswers) Validate() error {
	switch a.Timeline {
	case TimelineTwoWeeks, TimelineTwoMonths, TimelineFlexible:
	default:
		return eris.Wrapf(ErrIncompleteAnswers, "timeline %q", a.Timeline)
	}
	switch a.Condition {
	case ConditionNeedsWork, ConditionDated, ConditionMoveInReady:
	default:
		return eris.Wrapf(ErrIncompleteAnswers, "condition %q", a.Condition)
	}
	switch a.Goal {
	case GoalTopDollar, GoalMonthlyIncome, GoalCertainClose, GoalMinimalHassle:
	default:
		return eris.Wrapf(ErrIncompleteAnswers, "goal %q", a.Goal)
	}
	switch a.Mortgage {
	case MortgageFreeAndClear, MortgageSmallBalance, MortgageLargeBalance:
	default:
		return eris.Wrapf(ErrIncompleteAnswers, "mortgage %q", a.Mortgage)
	}
	if a.OpenToShowings == nil {
		return eris.Wrap(ErrIncompleteAnswers, "open_to_showings unanswered")
	}
	if a.NeedsFundsEarly == nil {
		return eris.Wrap(ErrIncompleteAnswers, "needs_funds_early unanswered")
	}
	return nil
}

func (a QuizAnswers) showingsOK() bool {
	return a.OpenToShowings != nil && *a.OpenToShowings
}

func (a QuizAnswers) needsFundsEarly() bool {
	return a.NeedsFundsEarly != nil && *a.NeedsFundsEarly
}

// hasEquity reports whether the seller's position leaves meaningful equity to
// borrow against or carry financing on.
func (a QuizAnswers) hasEquity() bool {
	return a.Mortgage == MortgageFreeAndClear || a.Mortgage == MortgageSmallBalance
}
