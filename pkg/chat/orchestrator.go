package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultWindowLimit bounds the history window passed as generation
	// context.
	DefaultWindowLimit = 5

	// DefaultDebounce bounds the model frame rate: consecutive generation
	// states are coalesced so frames are never emitted faster than this.
	DefaultDebounce = 10 * time.Millisecond

	// DefaultTitleThreshold is the prior batch count below which the title
	// pass still runs.
	DefaultTitleThreshold = 3

	// DefaultGenerationTimeout bounds the primary generation call.
	DefaultGenerationTimeout = 30 * time.Second

	// MaxFollowUpQuestions caps the metadata pass output.
	MaxFollowUpQuestions = 4
)

// ChatRequest is one prompt submission.
type ChatRequest struct {
	Prompt          string
	ConversationID  uuid.UUID
	Locale          string
	EnableWebSearch bool
}

// Orchestrator drives one streaming chat exchange end to end: echo the
// prompt, stream debounced generation states, collect side-channel data, run
// the auxiliary passes and persist the batch. Phases run strictly in that
// order; independent requests run concurrently against the shared store and
// cache.
type Orchestrator struct {
	store       *Store
	generator   Generator
	deriver     Deriver
	sideChannel *SideChannelCache

	WindowLimit       int
	Debounce          time.Duration
	TitleThreshold    int64
	GenerationTimeout time.Duration
}

func NewOrchestrator(store *Store, generator Generator, deriver Deriver, sideChannel *SideChannelCache) *Orchestrator {
	return &Orchestrator{
		store:             store,
		generator:         generator,
		deriver:           deriver,
		sideChannel:       sideChannel,
		WindowLimit:       DefaultWindowLimit,
		Debounce:          DefaultDebounce,
		TitleThreshold:    DefaultTitleThreshold,
		GenerationTimeout: DefaultGenerationTimeout,
	}
}

// Run executes the state machine for one request, writing frames to w in
// production order. A validation failure is returned before any frame is
// written. After streaming begins, a fatal generation failure emits one
// terminal error frame and returns ErrGenerationFailed; nothing is persisted
// in that case. Auxiliary pass failures degrade to defaults and never abort
// the response.
func (o *Orchestrator) Run(ctx context.Context, req ChatRequest, w FrameWriter) error {
	if req.Prompt == "" {
		return errors.New("prompt is required")
	}
	if req.ConversationID == uuid.Nil {
		return errors.New("conversation id is required")
	}

	receivedAt := time.Now().UTC()
	conversationID := req.ConversationID.String()
	correlationID := CorrelationIDFromContext(ctx)
	logger := log.WithFields(log.Fields{
		"conversationID": conversationID,
		"correlationID":  correlationID,
	})

	// Echo the prompt before any generation latency.
	userTurn := UserTurn(req.Prompt, receivedAt)
	echo, _ := ProjectTurn(userTurn, conversationID)
	if err := w.WriteFrame(echo); err != nil {
		return errors.Wrap(err, "writing user echo frame")
	}

	window, err := o.store.FetchWindow(ctx, req.ConversationID, o.WindowLimit)
	if err != nil {
		return o.abort(logger, w, conversationID, errors.WithMessage(err, "loading history window"))
	}
	var history []Turn
	for _, b := range window {
		history = append(history, b.Turns...)
	}

	runStart := time.Now().UTC()
	genCtx, cancel := context.WithTimeout(ctx, o.GenerationTimeout)
	defer cancel()

	generation := o.generator.Generate(genCtx, GenerationRequest{
		Prompt:          req.Prompt,
		History:         history,
		Locale:          req.Locale,
		EnableWebSearch: req.EnableWebSearch,
	})
	if err := o.streamGeneration(genCtx, generation, w, conversationID, runStart); err != nil {
		// The consumer went away or the transport failed; stop pulling
		// states and leave no trace of the exchange.
		logger.WithError(err).Info("stream ended before generation completed")
		return err
	}

	generated, err := generation.Wait()
	if err != nil {
		return o.abort(logger, w, conversationID, err)
	}

	batchTurns := append([]Turn{userTurn}, generated...)

	// Best-effort side-channel lookups; absence is normal.
	sources := o.sideChannel.Sources(ctx, correlationID)
	knowledgeResults := o.sideChannel.KnowledgeResults(ctx, correlationID)

	transcript := transcriptJSON(batchTurns)
	metadata, err := o.deriver.DeriveMetadata(ctx, transcript, MetadataOptions{
		Locale:        req.Locale,
		WebSearchUsed: req.EnableWebSearch,
	})
	if err != nil {
		logger.WithError(err).Warn("metadata pass failed, using defaults")
		metadata = Metadata{}
	}
	if metadata.FollowUpQuestions == nil {
		metadata.FollowUpQuestions = []string{}
	}
	if len(metadata.FollowUpQuestions) > MaxFollowUpQuestions {
		metadata.FollowUpQuestions = metadata.FollowUpQuestions[:MaxFollowUpQuestions]
	}

	sideChannel := &SideChannel{
		Sources:                   sources,
		KnowledgeResults:          knowledgeResults,
		FollowUpQuestions:         metadata.FollowUpQuestions,
		ProvideAppointmentBooking: metadata.ProvideAppointmentBooking,
		RecommendProduct:          metadata.RecommendProduct,
	}
	if err := w.WriteFrame(WireMessage{
		Role:           WireRoleMetadata,
		ConversationID: conversationID,
		Timestamp:      wireTimestamp(time.Now()),
		Content:        sideChannel,
	}); err != nil {
		return errors.Wrap(err, "writing metadata frame")
	}

	o.maybeDeriveTitle(ctx, logger, req.ConversationID, transcript)

	if err := o.store.AppendBatch(ctx, req.ConversationID, batchTurns, sideChannel); err != nil {
		logger.WithError(err).Error("could not persist exchange")
		return err
	}

	logger.WithField("turns", len(batchTurns)).Info("chat exchange completed")
	return nil
}

// streamGeneration drains the run's cumulative states, coalescing them with
// the debounce interval. Every emitted model frame carries the cumulative
// text and the run's fixed start timestamp. The final state is always
// emitted.
func (o *Orchestrator) streamGeneration(ctx context.Context, generation *Generation, w FrameWriter, conversationID string, runStart time.Time) error {
	ticker := time.NewTicker(o.Debounce)
	defer ticker.Stop()

	var pending string
	dirty := false
	states := generation.States()

	emit := func() error {
		dirty = false
		return w.WriteFrame(WireMessage{
			Role:           WireRoleModel,
			ConversationID: conversationID,
			Timestamp:      wireTimestamp(runStart),
			Content:        pending,
		})
	}

	for states != nil {
		select {
		case s, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			pending = s
			dirty = true
		case <-ticker.C:
			if dirty {
				if err := emit(); err != nil {
					return errors.Wrap(err, "writing model frame")
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if dirty {
		if err := emit(); err != nil {
			return errors.Wrap(err, "writing final model frame")
		}
	}
	return nil
}

// maybeDeriveTitle runs the title pass for early exchanges. Every failure
// here is logged and ignored; it never affects the response or persistence.
func (o *Orchestrator) maybeDeriveTitle(ctx context.Context, logger *log.Entry, conversationID uuid.UUID, transcript string) {
	count, err := o.store.BatchCount(ctx, conversationID)
	if err != nil {
		logger.WithError(err).Warn("could not count batches, skipping title pass")
		return
	}
	if count >= o.TitleThreshold {
		return
	}

	title, err := o.deriver.DeriveTitle(ctx, transcript)
	if err != nil {
		logger.WithError(err).Warn("title pass failed")
		return
	}
	if title == "" {
		return
	}
	if err := o.store.UpdateTitle(ctx, conversationID, title); err != nil {
		logger.WithError(err).Warn("could not update conversation title")
	}
}

func (o *Orchestrator) abort(logger *log.Entry, w FrameWriter, conversationID string, cause error) error {
	logger.WithError(cause).Error("aborting stream")
	// Consumers have already seen a success status and partial frames, so a
	// terminal error frame is the only way to signal the failure.
	if err := w.WriteFrame(WireMessage{
		Role:           WireRoleError,
		ConversationID: conversationID,
		Timestamp:      wireTimestamp(time.Now()),
		Content:        "the assistant could not complete this response",
	}); err != nil {
		logger.WithError(err).Warn("could not write terminal error frame")
	}
	return errors.Wrapf(ErrGenerationFailed, "%v", cause)
}

func transcriptJSON(turns []Turn) string {
	b, err := json.Marshal(turns)
	if err != nil {
		return ""
	}
	return string(b)
}
