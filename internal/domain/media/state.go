package media

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is a step of the ingestion pipeline.
type State string

const (
	StateStart              State = "start"
	StateRawReceived        State = "raw_received"
	StateRawStaged          State = "raw_staged"
	StateDeriving           State = "deriving"
	StateMetadataExtracting State = "metadata_extracting"
	StateCommitting         State = "committing"
	StateCommitted          State = "committed"
	StateRollingBack        State = "rolling_back"
	StateFailed             State = "failed"
)

var transitions = map[State][]State{
	StateStart:              {StateRawReceived, StateRawStaged, StateFailed},
	StateRawReceived:        {StateDeriving, StateFailed},
	StateRawStaged:          {StateDeriving, StateFailed},
	StateDeriving:           {StateMetadataExtracting, StateFailed},
	StateMetadataExtracting: {StateCommitting, StateRollingBack},
	StateCommitting:         {StateCommitted, StateRollingBack},
	StateRollingBack:        {StateFailed},
}

// CanTransition reports whether the pipeline may move from one state to the other.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Flow names the entry shape that started a pipeline run.
type Flow string

const (
	FlowSinglePhase Flow = "single_phase"
	FlowFinalize    Flow = "finalize"
)

// pipelineRun tracks one ingestion through the state machine.
type pipelineRun struct {
	flow    Flow
	state   State
	history []State
	started time.Time
	span    trace.Span
	log     zerolog.Logger
}

func newPipelineRun(flow Flow, span trace.Span, log zerolog.Logger) *pipelineRun {
	return &pipelineRun{
		flow:    flow,
		state:   StateStart,
		history: []State{StateStart},
		started: time.Now(),
		span:    span,
		log:     log,
	}
}

// advance moves the run to the next state. An illegal move is a programming
// error and panics so tests catch it.
func (r *pipelineRun) advance(to State) {
	if !CanTransition(r.state, to) {
		panic(fmt.Sprintf("media pipeline: illegal transition %s -> %s", r.state, to))
	}
	r.log.Debug().
		Str("flow", string(r.flow)).
		Str("from", string(r.state)).
		Str("to", string(to)).
		Dur("elapsed", time.Since(r.started)).
		Msg("pipeline transition")
	r.span.AddEvent("pipeline."+string(to), trace.WithAttributes(attribute.String("from", string(r.state))))
	r.state = to
	r.history = append(r.history, to)
}

// fail moves the run to Failed, passing through RollingBack when the current state requires it.
func (r *pipelineRun) fail() {
	if r.state == StateFailed {
		return
	}
	if !CanTransition(r.state, StateFailed) {
		r.advance(StateRollingBack)
	}
	r.advance(StateFailed)
}
