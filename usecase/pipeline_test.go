package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

type fakeTranscriber struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls += 1
	return f.transcript, f.err
}

type generatorCall struct {
	transcript string
	kind       entities.OutputKind
	settings   entities.OutputSettings
}

type fakeGenerator struct {
	mu      sync.Mutex
	results map[entities.OutputKind]string
	errs    map[entities.OutputKind]error
	delays  map[entities.OutputKind]time.Duration
	gate    chan struct{}
	calls   []generatorCall
}

func (f *fakeGenerator) GenerateOutput(ctx context.Context, transcript string, kind entities.OutputKind, settings entities.OutputSettings) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	delay := f.delays[kind]
	f.calls = append(f.calls, generatorCall{transcript: transcript, kind: kind, settings: settings})
	result, err := f.results[kind], f.errs[kind]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}
	return result, nil
}

func (f *fakeGenerator) callsFor(kind entities.OutputKind) []generatorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var calls []generatorCall
	for _, call := range f.calls {
		if call.kind == kind {
			calls = append(calls, call)
		}
	}
	return calls
}

// memStore counts persistence writes; the pipeline persists after every
// ledger mutation, so the counter doubles as a mutation trace.
type memStore struct {
	mu    sync.Mutex
	saves int
}

func (s *memStore) Save(rec *entities.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves += 1
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) Load(path string) (*entities.Recording, error) { return nil, errors.New("not used") }
func (s *memStore) LoadFolder(folder string) ([]*entities.Recording, error) {
	return nil, nil
}
func (s *memStore) Folders() ([]string, error)                       { return nil, nil }
func (s *memStore) EnsureFolder(folder string) error                 { return nil }
func (s *memStore) Move(rec *entities.Recording, to string) error    { return nil }
func (s *memStore) Delete(rec *entities.Recording) error             { return nil }
func (s *memStore) ImportAudio(src, folder string) (string, error)   { return "", nil }
func (s *memStore) AudioPath(rec *entities.Recording) string         { return "/tmp/" + rec.AudioPath }
func (s *memStore) NewAudioPath(folder string) (string, error)       { return "/tmp/new.m4a", nil }

type staticSettings struct {
	kinds    []entities.OutputKind
	defaults entities.OutputSettings
}

func (s *staticSettings) ConfiguredKinds() []entities.OutputKind { return s.kinds }
func (s *staticSettings) OutputSettings() entities.OutputSettings {
	return s.defaults
}

type fixture struct {
	pipeline    *Pipeline
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	store       *memStore
}

func newFixture(t *testing.T, transcriber *fakeTranscriber, generator *fakeGenerator) *fixture {
	t.Helper()
	store := &memStore{}
	settings := &staticSettings{
		kinds:    []entities.OutputKind{entities.OutputKindTitle, entities.OutputKindSummary},
		defaults: entities.DefaultOutputSettings(),
	}
	return &fixture{
		pipeline:    NewPipeline(transcriber, generator, store, settings, zaptest.NewLogger(t)),
		transcriber: transcriber,
		generator:   generator,
		store:       store,
	}
}

func newTestRecording(generateText bool) *entities.Recording {
	return entities.NewRecording(entities.FolderDefault, "memo.m4a", time.Now(), generateText)
}

func TestGenerateAllHappyPath(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Greeting",
			entities.OutputKindSummary: "A greeting.",
		}},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	transcript := rec.Outputs.Get(entities.OutputKindTranscript)
	require.NotNil(t, transcript)
	assert.Equal(t, entities.OutputStatusCompleted, transcript.Status)
	assert.Equal(t, "hello world", transcript.Content)

	title := rec.Outputs.Get(entities.OutputKindTitle)
	require.NotNil(t, title)
	assert.Equal(t, entities.OutputStatusCompleted, title.Status)
	assert.Equal(t, "Greeting", title.Content)
	assert.Equal(t, "Greeting", rec.Title)

	summary := rec.Outputs.Get(entities.OutputKindSummary)
	require.NotNil(t, summary)
	assert.Equal(t, entities.OutputStatusCompleted, summary.Status)
	assert.Equal(t, "A greeting.", summary.Content)

	assert.True(t, rec.Outputs.Settled())
	// placeholder + transcript upsert + transcript complete + 2 upserts + 2 settles
	assert.GreaterOrEqual(t, fx.store.saveCount(), 5)
}

func TestTranscriptFailureFailsEveryOutput(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{err: &repositories.TranscriptionError{Err: errors.New("connection reset")}},
		&fakeGenerator{},
	)
	rec := newTestRecording(true)
	rec.Outputs.UpsertLoading(entities.OutputKindCustom, entities.DefaultOutputSettings())

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	for _, out := range rec.Outputs.Outputs {
		assert.Equal(t, entities.OutputStatusError, out.Status, "kind %s", out.Kind)
		assert.Equal(t, entities.ErrorContent, out.Content, "kind %s", out.Kind)
	}
	assert.Equal(t, entities.UntitledTitle, rec.Title, "title must keep its pre-pipeline value")
	assert.Empty(t, fx.generator.calls, "no generation may run without a transcript")
}

func TestFanOutIndependence(t *testing.T) {
	// Title fails, Summary succeeds; exercise both arrival orders to show
	// completion order does not affect the outcome.
	orders := map[string]map[entities.OutputKind]time.Duration{
		"title settles first":   {entities.OutputKindTitle: 0, entities.OutputKindSummary: 30 * time.Millisecond},
		"summary settles first": {entities.OutputKindTitle: 30 * time.Millisecond, entities.OutputKindSummary: 0},
	}

	for name, delays := range orders {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t,
				&fakeTranscriber{transcript: "hello world"},
				&fakeGenerator{
					results: map[entities.OutputKind]string{entities.OutputKindSummary: "A greeting."},
					errs:    map[entities.OutputKind]error{entities.OutputKindTitle: errors.New("model overloaded")},
					delays:  delays,
				},
			)
			rec := newTestRecording(true)

			fx.pipeline.GenerateAll(rec, nil)
			fx.pipeline.Wait()

			title := rec.Outputs.Get(entities.OutputKindTitle)
			assert.Equal(t, entities.OutputStatusError, title.Status)
			assert.Equal(t, entities.ErrorContent, rec.Title)

			summary := rec.Outputs.Get(entities.OutputKindSummary)
			assert.Equal(t, entities.OutputStatusCompleted, summary.Status)
			assert.Equal(t, "A greeting.", summary.Content)
		})
	}
}

func TestEmptyTranscriptUsesFallbackText(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: ""},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Silence",
			entities.OutputKindSummary: "Nothing was said.",
		}},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	for _, call := range fx.generator.calls {
		assert.Equal(t, NoTranscriptFallback, call.transcript)
	}
}

func TestDisabledGenerationRestrictsEverything(t *testing.T) {
	fx := newFixture(t, &fakeTranscriber{transcript: "unused"}, &fakeGenerator{})
	rec := newTestRecording(false)

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	for _, out := range rec.Outputs.Outputs {
		assert.Equal(t, entities.OutputStatusRestricted, out.Status)
	}
	assert.Equal(t, 0, fx.transcriber.calls, "restricted recordings must not be transcribed")
	assert.GreaterOrEqual(t, fx.store.saveCount(), 2)
}

func TestRegenerateOutputPreservesIdentity(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{
			results: map[entities.OutputKind]string{entities.OutputKindTitle: "Greeting"},
			errs:    map[entities.OutputKind]error{entities.OutputKindSummary: errors.New("flaky")},
		},
	)
	rec := newTestRecording(true)
	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	summary := rec.Outputs.Get(entities.OutputKindSummary)
	require.Equal(t, entities.OutputStatusError, summary.Status)
	originalID := summary.ID

	fx.generator.mu.Lock()
	delete(fx.generator.errs, entities.OutputKindSummary)
	fx.generator.results[entities.OutputKindSummary] = "A greeting."
	fx.generator.mu.Unlock()

	fx.pipeline.RegenerateOutput(rec, summary)
	fx.pipeline.Wait()

	assert.Equal(t, originalID, summary.ID, "retry must not change the output's identity")
	assert.Equal(t, entities.OutputStatusCompleted, summary.Status)
	assert.Equal(t, "A greeting.", summary.Content)

	retries := fx.generator.callsFor(entities.OutputKindSummary)
	require.Len(t, retries, 2)
	assert.Equal(t, "hello world", retries[1].transcript, "retry must reuse the ledger transcript, not re-transcribe")
	assert.Equal(t, 1, fx.transcriber.calls)
}

func TestRegenerateTitleUpdatesRecordingTitle(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{errs: map[entities.OutputKind]error{
			entities.OutputKindTitle:   errors.New("down"),
			entities.OutputKindSummary: errors.New("down"),
		}},
	)
	rec := newTestRecording(true)
	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()
	require.Equal(t, entities.ErrorContent, rec.Title)

	fx.generator.mu.Lock()
	delete(fx.generator.errs, entities.OutputKindTitle)
	fx.generator.results = map[entities.OutputKind]string{entities.OutputKindTitle: "Greeting"}
	fx.generator.mu.Unlock()

	fx.pipeline.RegenerateOutput(rec, rec.Outputs.Get(entities.OutputKindTitle))
	fx.pipeline.Wait()

	assert.Equal(t, "Greeting", rec.Title)
}

func TestRegenerateAllRetriggersCustomOutputs(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Greeting",
			entities.OutputKindSummary: "A greeting.",
			entities.OutputKindCustom:  "- greet back",
		}},
	)
	rec := newTestRecording(true)
	customSettings := entities.DefaultOutputSettings()
	customSettings.Name = "Action items"
	customSettings.Transform = entities.TransformActionItems
	custom := rec.Outputs.UpsertLoading(entities.OutputKindCustom, customSettings)

	fx.pipeline.RegenerateAll(rec)
	fx.pipeline.Wait()

	assert.Equal(t, entities.OutputStatusCompleted, custom.Status)
	assert.Equal(t, "- greet back", custom.Content)

	customCalls := fx.generator.callsFor(entities.OutputKindCustom)
	require.Len(t, customCalls, 1)
	assert.Equal(t, customSettings, customCalls[0].settings, "custom retries must use their own stored settings")
	assert.True(t, rec.Outputs.Settled())
}

func TestGenerateCustomOutput(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{entities.OutputKindCustom: "Dear team,"}},
	)
	rec := newTestRecording(true)
	transcript := rec.Outputs.Get(entities.OutputKindTranscript)
	rec.Outputs.Complete(transcript.ID, "hello world", transcript.Settings)

	settings := entities.DefaultOutputSettings()
	settings.Name = "Follow-up email"
	settings.Transform = entities.TransformEmail

	first := fx.pipeline.GenerateCustomOutput(rec, settings)
	second := fx.pipeline.GenerateCustomOutput(rec, settings)
	fx.pipeline.Wait()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID, "custom outputs are never deduplicated")
	assert.Equal(t, entities.OutputStatusCompleted, first.Status)
	assert.Equal(t, entities.OutputStatusCompleted, second.Status)
}

func TestGenerateCustomOutputFailure(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{errs: map[entities.OutputKind]error{entities.OutputKindCustom: errors.New("bad prompt")}},
	)
	rec := newTestRecording(true)

	out := fx.pipeline.GenerateCustomOutput(rec, entities.DefaultOutputSettings())
	fx.pipeline.Wait()

	require.NotNil(t, out)
	assert.Equal(t, entities.OutputStatusError, out.Status)
	assert.Equal(t, entities.ErrorContent, out.Content)
}

func TestCancelDiscardsLateCompletions(t *testing.T) {
	gate := make(chan struct{})
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{
			gate: gate,
			results: map[entities.OutputKind]string{
				entities.OutputKindTitle:   "Greeting",
				entities.OutputKindSummary: "A greeting.",
			},
		},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)

	fx.pipeline.Cancel(rec.ID)
	savesAtCancel := fx.store.saveCount()
	close(gate)
	fx.pipeline.Wait()

	title := rec.Outputs.Get(entities.OutputKindTitle)
	summary := rec.Outputs.Get(entities.OutputKindSummary)
	assert.Equal(t, entities.OutputStatusLoading, title.Status, "cancelled results must be discarded, not applied")
	assert.Equal(t, entities.OutputStatusLoading, summary.Status)
	assert.Equal(t, entities.UntitledTitle, rec.Title)
	assert.Equal(t, savesAtCancel, fx.store.saveCount(), "no persistence may happen after cancellation")
}

func TestGenerateAfterCancelStartsFreshFlight(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Greeting",
			entities.OutputKindSummary: "A greeting.",
		}},
	)
	rec := newTestRecording(true)

	fx.pipeline.Cancel(rec.ID)
	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()

	assert.True(t, rec.Outputs.Settled())
	assert.Equal(t, "Greeting", rec.Title)
}

func TestEventsAreEmitted(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Greeting",
			entities.OutputKindSummary: "A greeting.",
		}},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Shutdown()

	var events []entities.GenerationEvent
	for event := range fx.pipeline.EventChannel() {
		events = append(events, event)
	}

	kinds := make(map[entities.OutputKind]entities.OutputStatus)
	for _, event := range events {
		require.Equal(t, rec.ID, event.RecordingID)
		kinds[event.Kind] = event.Status
	}
	assert.Equal(t, entities.OutputStatusCompleted, kinds[entities.OutputKindTranscript])
	assert.Equal(t, entities.OutputStatusCompleted, kinds[entities.OutputKindTitle])
	assert.Equal(t, entities.OutputStatusCompleted, kinds[entities.OutputKindSummary])
}

func TestRegenerateWhileGenerationInFlight(t *testing.T) {
	// A retry issued while the first generation of the same output is
	// still in flight must read the output's settings under the flight
	// lock, because the concurrent settle writes them there.
	gate := make(chan struct{})
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{
			gate: gate,
			results: map[entities.OutputKind]string{
				entities.OutputKindTitle:   "Greeting",
				entities.OutputKindSummary: "A greeting.",
			},
		},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)

	var summary *entities.Output
	fx.pipeline.View(rec, func() { summary = rec.Outputs.Get(entities.OutputKindSummary) })
	require.NotNil(t, summary)

	fx.pipeline.RegenerateOutput(rec, summary)
	close(gate)
	fx.pipeline.Wait()

	assert.Equal(t, entities.OutputStatusCompleted, summary.Status)
	assert.Equal(t, "A greeting.", summary.Content)
	assert.Len(t, fx.generator.callsFor(entities.OutputKindSummary), 2)
}

func TestFlightsReapedAfterSettlement(t *testing.T) {
	fx := newFixture(t,
		&fakeTranscriber{transcript: "hello world"},
		&fakeGenerator{results: map[entities.OutputKind]string{
			entities.OutputKindTitle:   "Greeting",
			entities.OutputKindSummary: "A greeting.",
		}},
	)
	rec := newTestRecording(true)

	fx.pipeline.GenerateAll(rec, nil)
	fx.pipeline.Wait()
	assert.Zero(t, flightCount(fx.pipeline), "settled recordings must not keep a flight")

	// Plain reads must not leave flights behind either.
	fx.pipeline.View(rec, func() {})
	assert.Zero(t, flightCount(fx.pipeline))

	fx.pipeline.RemoveOutput(rec, uuid.New())
	assert.Zero(t, flightCount(fx.pipeline))
}

func flightCount(p *Pipeline) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.flights)
}

func TestRemoveOutput(t *testing.T) {
	fx := newFixture(t, &fakeTranscriber{}, &fakeGenerator{})
	rec := newTestRecording(true)
	custom := rec.Outputs.UpsertLoading(entities.OutputKindCustom, entities.DefaultOutputSettings())

	fx.pipeline.RemoveOutput(rec, custom.ID)

	assert.Nil(t, rec.Outputs.GetByID(custom.ID))
	assert.GreaterOrEqual(t, fx.store.saveCount(), 1)

	// Removing an unknown id is recoverable, not fatal.
	fx.pipeline.RemoveOutput(rec, uuid.New())
}
