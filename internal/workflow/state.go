package workflow

import "fmt"

// Phase is one step of the analyze-then-generate cycle.
type Phase int

const (
	Idle Phase = iota
	Analyzing
	Analyzed
	Generating
	Generated
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Analyzing:
		return "analyzing"
	case Analyzed:
		return "analyzed"
	case Generating:
		return "generating"
	case Generated:
		return "generated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the controller's position in the cycle. FailedStage is Analyzing or Generating when Phase
// is Failed and zero otherwise.
type State struct {
	Phase       Phase
	FailedStage Phase
}

func (s State) String() string {
	if s.Phase == Failed {
		return fmt.Sprintf("failed(%s)", s.FailedStage)
	}
	return s.Phase.String()
}

// Busy reports whether a remote call is in flight.
func (s State) Busy() bool {
	return s.Phase == Analyzing || s.Phase == Generating
}

// FailedAt reports whether the state is Failed at the given stage.
func (s State) FailedAt(stage Phase) bool {
	return s.Phase == Failed && s.FailedStage == stage
}

// Flow selects the entry point of the cycle.
type Flow string

const (
	// FlowTwoStage analyzes the query first and generates from the resulting QuerySpec.
	FlowTwoStage Flow = "two-stage"
	// FlowTopic sends the raw text straight to generation, skipping Analyzing and Analyzed.
	FlowTopic Flow = "topic"
)

// ParseFlow validates a configured flow name; the empty string selects the two-stage flow.
func ParseFlow(value string) (Flow, error) {
	switch Flow(value) {
	case "", FlowTwoStage:
		return FlowTwoStage, nil
	case FlowTopic:
		return FlowTopic, nil
	default:
		return "", fmt.Errorf("unknown flow %q (want %q or %q)", value, FlowTwoStage, FlowTopic)
	}
}

const (
	LabelAnalyze         = "Analyze"
	LabelGenerateReport  = "Generate Report"
	LabelAnalyzing       = "Analyzing…"
	LabelGenerate        = "Generate"
	LabelGenerating      = "Generating…"
	LabelNewQuery        = "New Query"
	LabelRetryAnalysis   = "Retry Analysis"
	LabelRetryGeneration = "Retry Generation"
)

// Action is the single primary affordance shown to the user.
type Action struct {
	Label   string
	Enabled bool
}

func actionFor(state State, flow Flow, revealing bool) Action {
	switch state.Phase {
	case Idle:
		if flow == FlowTopic {
			return Action{Label: LabelGenerateReport, Enabled: true}
		}
		return Action{Label: LabelAnalyze, Enabled: true}
	case Analyzing:
		return Action{Label: LabelAnalyzing}
	case Analyzed:
		return Action{Label: LabelGenerate, Enabled: true}
	case Generating:
		return Action{Label: LabelGenerating}
	case Generated:
		return Action{Label: LabelNewQuery, Enabled: !revealing}
	case Failed:
		if state.FailedStage == Analyzing {
			return Action{Label: LabelRetryAnalysis, Enabled: true}
		}
		return Action{Label: LabelRetryGeneration, Enabled: true}
	}
	return Action{}
}
