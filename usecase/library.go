package usecase

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

// Generator is the slice of the pipeline the library needs: kick off
// generation for a recording and cancel its in-flight work.
type Generator interface {
	GenerateAll(rec *entities.Recording, onTranscript func())
	Cancel(recordingID uuid.UUID)
}

// Library is the registry of recordings per folder. It is the only
// component that inserts or removes whole recordings; the pipeline only
// mutates fields of recordings handed to it.
type Library struct {
	store    repositories.RecordingStore
	recorder repositories.AudioRecorder
	pipeline Generator
	logger   *zap.Logger

	mu      sync.RWMutex
	folders map[string][]*entities.Recording
}

// NewLibrary creates the registry.
func NewLibrary(
	store repositories.RecordingStore,
	recorder repositories.AudioRecorder,
	pipeline Generator,
	logger *zap.Logger,
) *Library {
	return &Library{
		store:    store,
		recorder: recorder,
		pipeline: pipeline,
		logger:   logger,
		folders:  make(map[string][]*entities.Recording),
	}
}

// LoadAll populates the registry from disk, skipping undecodable
// documents per the store's contract.
func (l *Library) LoadAll() error {
	folders, err := l.store.Folders()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.folders = make(map[string][]*entities.Recording)
	for _, folder := range folders {
		recordings, err := l.store.LoadFolder(folder)
		if err != nil {
			l.logger.Warn("Skipping unreadable folder",
				zap.String("folder", folder),
				zap.Error(err))
			continue
		}
		l.folders[folder] = recordings
	}
	return nil
}

// Folders returns the known folder names.
func (l *Library) Folders() ([]string, error) {
	return l.store.Folders()
}

// CreateFolder creates a user folder.
func (l *Library) CreateFolder(name string) error {
	if name == entities.FolderDefault || name == entities.FolderTrash {
		return fmt.Errorf("folder name %q is reserved", name)
	}
	return l.store.EnsureFolder(name)
}

// List returns the recordings of a folder, newest first.
func (l *Library) List(folder string) []*entities.Recording {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recordings := l.folders[folder]
	out := make([]*entities.Recording, len(recordings))
	copy(out, recordings)
	return out
}

// Get finds a recording by id across folders.
func (l *Library) Get(id uuid.UUID) (*entities.Recording, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, recordings := range l.folders {
		for _, rec := range recordings {
			if rec.ID == id {
				return rec, true
			}
		}
	}
	return nil, false
}

// StartRecording begins capturing audio into the folder's raw directory.
func (l *Library) StartRecording(folder string) error {
	if l.recorder.Recording() {
		return fmt.Errorf("a recording is already in progress")
	}
	path, err := l.store.NewAudioPath(folder)
	if err != nil {
		return err
	}
	return l.recorder.Start(path)
}

// StopRecording finalizes the capture, registers the new recording and
// kicks off the pipeline. The pipeline itself handles the restricted path
// when generateText is false.
func (l *Library) StopRecording(folder string, generateText bool) (*entities.Recording, error) {
	audioPath, err := l.recorder.Stop()
	if err != nil {
		return nil, err
	}
	rec := entities.NewRecording(folder, filepath.Base(audioPath), time.Now(), generateText)
	l.insert(rec)
	go l.pipeline.GenerateAll(rec, nil)
	return rec, nil
}

// Import copies an external audio file into the folder and registers a
// recording for it, same gate as a fresh capture.
func (l *Library) Import(src, folder string, generateText bool) (*entities.Recording, error) {
	audioName, err := l.store.ImportAudio(src, folder)
	if err != nil {
		return nil, err
	}
	rec := entities.NewRecording(folder, audioName, time.Now(), generateText)
	l.insert(rec)
	go l.pipeline.GenerateAll(rec, nil)
	return rec, nil
}

// Move relocates a recording to another folder. Moving into the trash goes
// through Trash instead.
func (l *Library) Move(id uuid.UUID, toFolder string) error {
	rec, ok := l.Get(id)
	if !ok {
		return fmt.Errorf("recording %s not found", id)
	}
	if rec.FolderPath == toFolder {
		return nil
	}

	fromFolder := rec.FolderPath
	if err := l.store.Move(rec, toFolder); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(fromFolder, id)
	l.folders[toFolder] = append([]*entities.Recording{rec}, l.folders[toFolder]...)
	return nil
}

// Trash soft-deletes a recording into the reserved trash folder and
// cancels any in-flight generation for it.
func (l *Library) Trash(id uuid.UUID) error {
	l.pipeline.Cancel(id)
	return l.Move(id, entities.FolderTrash)
}

// Delete hard-deletes a recording. Only permitted from within the trash.
func (l *Library) Delete(id uuid.UUID) error {
	rec, ok := l.Get(id)
	if !ok {
		return fmt.Errorf("recording %s not found", id)
	}
	if rec.FolderPath != entities.FolderTrash {
		return fmt.Errorf("recording %s is not in the trash", id)
	}
	if err := l.store.Delete(rec); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(entities.FolderTrash, id)
	return nil
}

func (l *Library) insert(rec *entities.Recording) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.folders[rec.FolderPath] = append([]*entities.Recording{rec}, l.folders[rec.FolderPath]...)
}

// remove expects l.mu to be held.
func (l *Library) remove(folder string, id uuid.UUID) {
	recordings := l.folders[folder]
	for i, rec := range recordings {
		if rec.ID == id {
			l.folders[folder] = append(recordings[:i], recordings[i+1:]...)
			return
		}
	}
}
