package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

// NoTranscriptFallback is sent to the generator when the transcript came
// back empty, so downstream outputs still resolve.
const NoTranscriptFallback = "No transcript"

// Pipeline drives a recording from audio to its generated outputs: persist
// placeholder, transcribe, fan out one generation call per configured kind,
// update the ledger incrementally and persist after every state change.
//
// All ledger mutations and persistence writes for one recording are
// serialized through that recording's flight; unrelated recordings progress
// in parallel. There is no join after the fan-out: callers observe
// settlement through the ledger or the event channel.
type Pipeline struct {
	transcriber repositories.Transcriber
	generator   repositories.OutputGenerator
	store       repositories.RecordingStore
	settings    repositories.SettingsProvider
	logger      *zap.Logger

	mu      sync.Mutex
	flights map[uuid.UUID]*flight

	wg     sync.WaitGroup
	events chan entities.GenerationEvent
}

// flight tracks the in-flight work of one recording. Its mutex is the
// critical section around ledger mutation + persist; its context is
// cancelled when the user discards the in-progress recording.
type flight struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	// refs counts the operations and goroutines holding this flight,
	// guarded by Pipeline.mu. The last release reaps the map entry.
	refs int
}

// NewPipeline creates the generation pipeline.
func NewPipeline(
	transcriber repositories.Transcriber,
	generator repositories.OutputGenerator,
	store repositories.RecordingStore,
	settings repositories.SettingsProvider,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		generator:   generator,
		store:       store,
		settings:    settings,
		logger:      logger,
		flights:     make(map[uuid.UUID]*flight),
		events:      make(chan entities.GenerationEvent, 100),
	}
}

// EventChannel returns the stream of generation events.
func (p *Pipeline) EventChannel() <-chan entities.GenerationEvent {
	return p.events
}

// flightFor returns the recording's live flight with a reference held,
// replacing a cancelled one. Every call pairs with a release.
func (p *Pipeline) flightFor(id uuid.UUID) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fl, ok := p.flights[id]; ok && fl.ctx.Err() == nil {
		fl.refs++
		return fl
	}
	ctx, cancel := context.WithCancel(context.Background())
	fl := &flight{ctx: ctx, cancel: cancel, refs: 1}
	p.flights[id] = fl
	return fl
}

// retain adds a reference for a goroutine that outlives its spawner.
func (p *Pipeline) retain(fl *flight) {
	p.mu.Lock()
	fl.refs++
	p.mu.Unlock()
}

// release drops one reference. Dropping the last one removes the map
// entry, so settled recordings do not accumulate flights for the life of
// the process. Cancel may have replaced the entry already, hence the
// identity check.
func (p *Pipeline) release(id uuid.UUID, fl *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fl.refs--
	if fl.refs == 0 && p.flights[id] == fl {
		delete(p.flights, id)
	}
}

// apply runs one ledger mutation and persists the recording, as a single
// critical section. A cancelled flight discards the mutation entirely and
// reports false: late completions of abandoned work must not be applied.
func (p *Pipeline) apply(fl *flight, rec *entities.Recording, mutate func()) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.ctx.Err() != nil {
		return false
	}
	if mutate != nil {
		mutate()
	}
	if err := p.store.Save(rec); err != nil {
		p.logger.Error("Persisting recording failed",
			zap.String("recordingID", rec.ID.String()),
			zap.Error(err))
	}
	return true
}

// view reads the ledger under the recording's critical section.
func (p *Pipeline) view(fl *flight, read func()) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	read()
}

// View runs read under the recording's critical section, so observers see a
// consistent ledger while generation is in flight.
func (p *Pipeline) View(rec *entities.Recording, read func()) {
	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)
	p.view(fl, read)
}

// GenerateAll runs the full pipeline for a recording. It returns once the
// transcript has settled and the per-kind generation calls are in flight;
// onTranscript, when non-nil, is invoked right after the transcript
// completes (used by regeneration to chain custom outputs).
func (p *Pipeline) GenerateAll(rec *entities.Recording, onTranscript func()) {
	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)

	// Persist the placeholder state first so the recording exists on disk
	// even if the process dies mid-pipeline.
	if !p.apply(fl, rec, nil) {
		return
	}

	if !rec.GenerateText {
		if p.apply(fl, rec, func() { rec.Outputs.RestrictAll() }) {
			p.emit(rec, nil, entities.OutputStatusRestricted)
		}
		return
	}

	var transcriptOut *entities.Output
	if !p.apply(fl, rec, func() {
		transcriptOut = rec.Outputs.UpsertLoading(entities.OutputKindTranscript, entities.DefaultOutputSettings())
	}) {
		return
	}

	transcript, err := p.transcriber.Transcribe(fl.ctx, p.store.AudioPath(rec))
	if err != nil {
		p.logger.Error("Transcription failed, failing all outputs",
			zap.String("recordingID", rec.ID.String()),
			zap.Error(err))
		if p.apply(fl, rec, func() { rec.Outputs.FailAll() }) {
			p.emit(rec, nil, entities.OutputStatusError)
		}
		return
	}

	if !p.apply(fl, rec, func() {
		if !rec.Outputs.Complete(transcriptOut.ID, transcript, transcriptOut.Settings) {
			p.logger.Warn("Transcript output vanished before completion",
				zap.String("recordingID", rec.ID.String()))
		}
	}) {
		return
	}
	p.emit(rec, transcriptOut, entities.OutputStatusCompleted)

	if onTranscript != nil {
		onTranscript()
	}

	kinds := p.settings.ConfiguredKinds()
	global := p.settings.OutputSettings()
	global.Name = ""
	global.Prompt = ""

	text := transcript
	if text == "" {
		text = NoTranscriptFallback
	}

	for _, kind := range kinds {
		if kind == entities.OutputKindTranscript {
			continue
		}
		var out *entities.Output
		if !p.apply(fl, rec, func() {
			out = rec.Outputs.UpsertLoading(kind, global)
		}) {
			return
		}
		p.spawn(fl, rec, out, text, global)
	}
}

// RegenerateAll resets every output to loading and re-runs the pipeline.
// Custom outputs are not part of the configured kinds, so they are
// re-triggered explicitly, each with its own stored settings, once the
// fresh transcript is ready.
func (p *Pipeline) RegenerateAll(rec *entities.Recording) {
	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)
	if !p.apply(fl, rec, func() { rec.Outputs.LoadingAll() }) {
		return
	}
	p.GenerateAll(rec, func() {
		var customs []*entities.Output
		p.view(fl, func() { customs = rec.Outputs.Customs() })
		for _, out := range customs {
			p.RegenerateOutput(rec, out)
		}
	})
}

// RegenerateOutput retries a single output with the transcript already on
// the ledger; no re-transcription. The output keeps its identity across
// the loading -> completed/error transition.
func (p *Pipeline) RegenerateOutput(rec *entities.Recording, out *entities.Output) {
	if out.Kind == entities.OutputKindTranscript {
		p.logger.Warn("Transcript retries go through RegenerateAll",
			zap.String("recordingID", rec.ID.String()))
		return
	}

	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)
	var transcript string
	var settings entities.OutputSettings
	if !p.apply(fl, rec, func() {
		if !rec.Outputs.MarkLoading(out.ID) {
			p.logger.Warn("Regenerating unknown output",
				zap.String("recordingID", rec.ID.String()),
				zap.String("outputID", out.ID.String()))
		}
		transcript = rec.Outputs.Transcript()
		// A settle for this output may still be in flight and writes
		// Settings under the same lock, so copy it here.
		settings = out.Settings
	}) {
		return
	}

	if transcript == "" {
		transcript = NoTranscriptFallback
	}
	p.spawn(fl, rec, out, transcript, settings)
}

// GenerateCustomOutput creates a new custom output and generates it from
// the transcript already on the ledger. Returns the loading output, or nil
// when the recording's work has been cancelled.
func (p *Pipeline) GenerateCustomOutput(rec *entities.Recording, settings entities.OutputSettings) *entities.Output {
	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)
	var out *entities.Output
	var transcript string
	if !p.apply(fl, rec, func() {
		out = rec.Outputs.UpsertLoading(entities.OutputKindCustom, settings)
		transcript = rec.Outputs.Transcript()
	}) {
		return nil
	}

	if transcript == "" {
		transcript = NoTranscriptFallback
	}
	p.spawn(fl, rec, out, transcript, settings)
	return out
}

// RemoveOutput deletes an output (user deletion of a custom transform) and
// persists the recording.
func (p *Pipeline) RemoveOutput(rec *entities.Recording, outputID uuid.UUID) {
	fl := p.flightFor(rec.ID)
	defer p.release(rec.ID, fl)
	p.apply(fl, rec, func() {
		if !rec.Outputs.Remove(outputID) {
			p.logger.Warn("Removing unknown output",
				zap.String("recordingID", rec.ID.String()),
				zap.String("outputID", outputID.String()))
		}
	})
}

// Cancel abandons all in-flight work for a recording. Best-effort: network
// calls already in flight are abandoned, and their late results are
// discarded rather than applied.
func (p *Pipeline) Cancel(recordingID uuid.UUID) {
	p.mu.Lock()
	fl := p.flights[recordingID]
	delete(p.flights, recordingID)
	p.mu.Unlock()
	if fl != nil {
		fl.cancel()
		p.logger.Info("Cancelled in-flight generation",
			zap.String("recordingID", recordingID.String()))
	}
}

// Wait blocks until every in-flight generation call has settled.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Shutdown waits for in-flight work and closes the event channel.
func (p *Pipeline) Shutdown() {
	p.Wait()
	close(p.events)
}

// spawn launches one generation call. Settlement order between kinds is
// deliberately unspecified.
func (p *Pipeline) spawn(fl *flight, rec *entities.Recording, out *entities.Output, transcript string, settings entities.OutputSettings) {
	p.wg.Add(1)
	p.retain(fl)
	go func() {
		defer p.wg.Done()
		defer p.release(rec.ID, fl)
		content, err := p.generator.GenerateOutput(fl.ctx, transcript, out.Kind, settings)
		if err != nil {
			p.logger.Error("Output generation failed",
				zap.String("recordingID", rec.ID.String()),
				zap.String("kind", string(out.Kind)),
				zap.Error(err))
			p.settleFailure(fl, rec, out)
			return
		}
		p.settleSuccess(fl, rec, out, content, settings)
	}()
}

func (p *Pipeline) settleSuccess(fl *flight, rec *entities.Recording, out *entities.Output, content string, settings entities.OutputSettings) {
	applied := p.apply(fl, rec, func() {
		if !rec.Outputs.Complete(out.ID, content, settings) {
			p.logger.Warn("Completing unknown output",
				zap.String("recordingID", rec.ID.String()),
				zap.String("outputID", out.ID.String()))
			return
		}
		// The title lives both as a recording field and as the Title
		// output; keep them in sync.
		if out.Kind == entities.OutputKindTitle {
			rec.Title = content
		}
	})
	if applied {
		p.emit(rec, out, entities.OutputStatusCompleted)
	}
}

func (p *Pipeline) settleFailure(fl *flight, rec *entities.Recording, out *entities.Output) {
	applied := p.apply(fl, rec, func() {
		if !rec.Outputs.Fail(out.ID) {
			p.logger.Warn("Failing unknown output",
				zap.String("recordingID", rec.ID.String()),
				zap.String("outputID", out.ID.String()))
			return
		}
		if out.Kind == entities.OutputKindTitle {
			rec.Title = entities.ErrorContent
		}
	})
	if applied {
		p.emit(rec, out, entities.OutputStatusError)
	}
}

func (p *Pipeline) emit(rec *entities.Recording, out *entities.Output, status entities.OutputStatus) {
	event := entities.GenerationEvent{
		RecordingID: rec.ID,
		Status:      status,
		Timestamp:   time.Now(),
	}
	if out != nil {
		event.OutputID = out.ID
		event.Kind = out.Kind
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Event channel full, dropping event",
			zap.String("recordingID", rec.ID.String()))
	}
}
