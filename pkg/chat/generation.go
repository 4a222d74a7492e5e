package chat

import "context"

// GenerationRequest is the input to the primary generation service.
type GenerationRequest struct {
	Prompt          string
	History         []Turn
	Locale          string
	EnableWebSearch bool
}

// Generator is the external generation service. Generate returns
// immediately; the run produces states and its final result asynchronously.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) *Generation
}

// Metadata holds the signals produced by the metadata pass.
type Metadata struct {
	FollowUpQuestions         []string
	ProvideAppointmentBooking bool
	RecommendProduct          bool
}

// MetadataOptions tunes the metadata pass.
type MetadataOptions struct {
	Locale        string
	WebSearchUsed bool
}

// Deriver runs the auxiliary derivation passes over a finalized transcript.
// Both passes are best-effort from the orchestrator's point of view: their
// failures never abort the response.
type Deriver interface {
	DeriveMetadata(ctx context.Context, transcript string, opts MetadataOptions) (Metadata, error)
	DeriveTitle(ctx context.Context, transcript string) (string, error)
}

// Generation is a single generation run: a lazy, ordered, non-restartable
// sequence of cumulative text states, followed by the run's final turn list.
// The producer pushes states and finishes exactly once; the consumer drains
// States and then calls Wait.
type Generation struct {
	states chan string
	done   chan struct{}
	turns  []Turn
	err    error
}

func NewGeneration() *Generation {
	return &Generation{
		states: make(chan string, 1),
		done:   make(chan struct{}),
	}
}

// States yields cumulative text states in production order. Closed when the
// run finishes.
func (g *Generation) States() <-chan string {
	return g.states
}

// Push delivers the next cumulative state. It gives up when ctx is done so
// an abandoned consumer never wedges the producer.
func (g *Generation) Push(ctx context.Context, state string) {
	select {
	case g.states <- state:
	case <-ctx.Done():
	}
}

// Finish ends the run with its final turns or error. Must be called exactly
// once, after the last Push.
func (g *Generation) Finish(turns []Turn, err error) {
	g.turns = turns
	g.err = err
	close(g.states)
	close(g.done)
}

// Wait blocks until the run finished and returns its outcome.
func (g *Generation) Wait() ([]Turn, error) {
	<-g.done
	return g.turns, g.err
}
