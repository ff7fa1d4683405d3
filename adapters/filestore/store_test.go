package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func newTestRecording(t *testing.T, store *Store, folder string, createdAt time.Time) *entities.Recording {
	t.Helper()
	rec := entities.NewRecording(folder, "memo-"+createdAt.Format("150405.000")+".m4a", createdAt, true)
	require.NoError(t, os.WriteFile(store.AudioPath(rec), []byte("audio-bytes"), 0o644))
	return rec
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	rec := newTestRecording(t, store, entities.FolderDefault, time.Now())
	rec.Title = "Standup notes"
	transcript := rec.Outputs.Get(entities.OutputKindTranscript)
	rec.Outputs.Complete(transcript.ID, "hello world", transcript.Settings)
	custom := rec.Outputs.UpsertLoading(entities.OutputKindCustom, entities.OutputSettings{
		Length: entities.LengthLong, Format: entities.FormatParagraph, Tone: entities.ToneProfessional,
		Name: "Follow-up email", Prompt: "Write a follow-up email", Transform: entities.TransformEmail,
		Language: "en",
	})
	rec.Outputs.Fail(custom.ID)

	require.NoError(t, store.Save(rec))

	loaded, err := store.Load(store.DocumentPath(rec))
	require.NoError(t, err)

	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.FolderPath, loaded.FolderPath)
	assert.Equal(t, rec.AudioPath, loaded.AudioPath)
	assert.Equal(t, rec.FilePath, loaded.FilePath)
	assert.Equal(t, rec.Title, loaded.Title)
	assert.Equal(t, rec.GenerateText, loaded.GenerateText)
	assert.True(t, rec.CreatedAt.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Outputs.Outputs, len(rec.Outputs.Outputs))
	for i, want := range rec.Outputs.Outputs {
		got := loaded.Outputs.Outputs[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Settings, got.Settings)
	}
}

func TestSaveOverwritesPreviousDocument(t *testing.T) {
	store := newTestStore(t)
	rec := newTestRecording(t, store, entities.FolderDefault, time.Now())
	require.NoError(t, store.Save(rec))

	rec.Title = "Greeting"
	require.NoError(t, store.Save(rec))

	loaded, err := store.Load(store.DocumentPath(rec))
	require.NoError(t, err)
	assert.Equal(t, "Greeting", loaded.Title)
}

func TestLoadMalformedDocument(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(store.folderDir(entities.FolderDefault), "broken.m4a.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := store.Load(path)
	var decodeErr *repositories.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, path, decodeErr.Path)
}

func TestLoadSchemaMismatch(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(store.folderDir(entities.FolderDefault), "empty.m4a.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"no id"}`), 0o644))

	_, err := store.Load(path)
	var decodeErr *repositories.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestLoadFolderSkipsCorruptAndSortsDescending(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	older := newTestRecording(t, store, entities.FolderDefault, base)
	newer := newTestRecording(t, store, entities.FolderDefault, base.Add(10*time.Minute))
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))

	corrupt := filepath.Join(store.folderDir(entities.FolderDefault), "corrupt.m4a.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("###"), 0o644))

	recordings, err := store.LoadFolder(entities.FolderDefault)
	require.NoError(t, err)
	require.Len(t, recordings, 2)
	assert.Equal(t, newer.ID, recordings[0].ID)
	assert.Equal(t, older.ID, recordings[1].ID)
}

func TestMoveRelocatesAudioAndDocument(t *testing.T) {
	store := newTestStore(t)
	rec := newTestRecording(t, store, entities.FolderDefault, time.Now())
	require.NoError(t, store.Save(rec))
	oldAudio := store.AudioPath(rec)
	oldDoc := store.DocumentPath(rec)

	require.NoError(t, store.EnsureFolder("Work"))
	require.NoError(t, store.Move(rec, "Work"))

	assert.Equal(t, "Work", rec.FolderPath)
	assert.FileExists(t, store.AudioPath(rec))
	assert.FileExists(t, store.DocumentPath(rec))
	assert.NoFileExists(t, oldAudio)
	assert.NoFileExists(t, oldDoc)

	loaded, err := store.Load(store.DocumentPath(rec))
	require.NoError(t, err)
	assert.Equal(t, "Work", loaded.FolderPath)
}

func TestMoveMissingAudioLeavesSourceIntact(t *testing.T) {
	store := newTestStore(t)
	rec := entities.NewRecording(entities.FolderDefault, "ghost.m4a", time.Now(), false)
	require.NoError(t, store.Save(rec))

	err := store.Move(rec, entities.FolderTrash)
	var fsErr *repositories.FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, entities.FolderDefault, rec.FolderPath)
	assert.FileExists(t, store.DocumentPath(rec))
}

func TestDeleteRemovesBothFiles(t *testing.T) {
	store := newTestStore(t)
	rec := newTestRecording(t, store, entities.FolderTrash, time.Now())
	require.NoError(t, store.Save(rec))

	require.NoError(t, store.Delete(rec))
	assert.NoFileExists(t, store.DocumentPath(rec))
	assert.NoFileExists(t, store.AudioPath(rec))

	// Deleting again is a no-op, not an error.
	require.NoError(t, store.Delete(rec))
}

func TestImportAudio(t *testing.T) {
	store := newTestStore(t)
	src := filepath.Join(t.TempDir(), "external.m4a")
	require.NoError(t, os.WriteFile(src, []byte("imported"), 0o644))

	name, err := store.ImportAudio(src, entities.FolderDefault)
	require.NoError(t, err)
	assert.Equal(t, "external.m4a", name)

	// A second import of the same filename must not clobber the first.
	again, err := store.ImportAudio(src, entities.FolderDefault)
	require.NoError(t, err)
	assert.NotEqual(t, name, again)

	_, err = os.Stat(filepath.Join(store.rawDir(entities.FolderDefault), again))
	require.False(t, errors.Is(err, os.ErrNotExist))
}
