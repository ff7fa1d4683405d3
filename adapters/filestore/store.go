// Package filestore persists recordings as one JSON document per recording,
// colocated with the audio file under the owning folder's directory:
//
//	<base>/<folder>/raw/<audio file>
//	<base>/<folder>/<audio file>.json
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

const rawDirName = "raw"

// Store implements repositories.RecordingStore on the local filesystem.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

var _ repositories.RecordingStore = (*Store)(nil)

// NewStore creates the base directory and the reserved folders.
func NewStore(baseDir string, logger *zap.Logger) (*Store, error) {
	s := &Store{baseDir: baseDir, logger: logger}
	for _, folder := range []string{entities.FolderDefault, entities.FolderTrash} {
		if err := s.EnsureFolder(folder); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) folderDir(folder string) string {
	return filepath.Join(s.baseDir, folder)
}

func (s *Store) rawDir(folder string) string {
	return filepath.Join(s.baseDir, folder, rawDirName)
}

// DocumentPath returns the absolute path of a recording's document.
func (s *Store) DocumentPath(rec *entities.Recording) string {
	return filepath.Join(s.folderDir(rec.FolderPath), rec.FilePath)
}

// AudioPath returns the absolute path of a recording's audio file.
func (s *Store) AudioPath(rec *entities.Recording) string {
	return filepath.Join(s.rawDir(rec.FolderPath), rec.AudioPath)
}

// NewAudioPath returns a fresh capture path in the folder's raw directory.
func (s *Store) NewAudioPath(folder string) (string, error) {
	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}
	return filepath.Join(s.rawDir(folder), uuid.NewString()+".m4a"), nil
}

// EnsureFolder creates a folder directory and its raw subdirectory.
func (s *Store) EnsureFolder(folder string) error {
	if err := os.MkdirAll(s.rawDir(folder), 0o755); err != nil {
		return &repositories.FilesystemError{Op: "create folder", Path: s.folderDir(folder), Err: err}
	}
	return nil
}

// Folders lists folder names, reserved folders included.
func (s *Store) Folders() ([]string, error) {
	dirEntries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, &repositories.FilesystemError{Op: "list folders", Path: s.baseDir, Err: err}
	}
	var folders []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// Save writes the full recording document atomically: write to a temp file
// in the same directory, then rename over the canonical path.
func (s *Store) Save(rec *entities.Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode recording %s: %w", rec.ID, err)
	}

	path := s.DocumentPath(rec)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+rec.FilePath+".*")
	if err != nil {
		return &repositories.FilesystemError{Op: "stage document", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &repositories.FilesystemError{Op: "stage document", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &repositories.FilesystemError{Op: "stage document", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &repositories.FilesystemError{Op: "write document", Path: path, Err: err}
	}
	return nil
}

// Load deserializes one document. Malformed or schema-mismatched documents
// yield *repositories.DecodeError.
func (s *Store) Load(path string) (*entities.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &repositories.FilesystemError{Op: "read document", Path: path, Err: err}
	}
	var rec entities.Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &repositories.DecodeError{Path: path, Err: err}
	}
	if rec.ID == uuid.Nil || rec.AudioPath == "" || rec.Outputs == nil {
		return nil, &repositories.DecodeError{Path: path, Err: errors.New("missing required fields")}
	}
	return &rec, nil
}

// LoadFolder returns the decodable recordings of a folder in descending
// creation-time order. Undecodable documents are skipped and logged so one
// corrupt file never aborts the whole listing.
func (s *Store) LoadFolder(folder string) ([]*entities.Recording, error) {
	dir := s.folderDir(folder)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &repositories.FilesystemError{Op: "list folder", Path: dir, Err: err}
	}

	var recordings []*entities.Recording
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := s.Load(path)
		if err != nil {
			s.logger.Warn("Skipping undecodable recording document",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		recordings = append(recordings, rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].CreatedAt.After(recordings[j].CreatedAt)
	})
	return recordings, nil
}

// Move relocates audio and document to another folder as a staged two-phase
// operation: copy the audio to the destination, verify it, persist the
// document at the new location, and only then remove the source files.
func (s *Store) Move(rec *entities.Recording, toFolder string) error {
	if err := s.EnsureFolder(toFolder); err != nil {
		return err
	}

	oldFolder := rec.FolderPath
	oldAudio := s.AudioPath(rec)
	oldDoc := s.DocumentPath(rec)
	newAudio := filepath.Join(s.rawDir(toFolder), rec.AudioPath)

	if err := copyFile(oldAudio, newAudio); err != nil {
		os.Remove(newAudio)
		return &repositories.FilesystemError{Op: "stage audio", Path: newAudio, Err: err}
	}
	if err := verifyCopy(oldAudio, newAudio); err != nil {
		os.Remove(newAudio)
		return &repositories.FilesystemError{Op: "verify audio", Path: newAudio, Err: err}
	}

	rec.FolderPath = toFolder
	if err := s.Save(rec); err != nil {
		rec.FolderPath = oldFolder
		os.Remove(newAudio)
		return err
	}

	// Source removal is best-effort; the staged copies are already in place.
	if err := os.Remove(oldDoc); err != nil {
		s.logger.Warn("Leaving stale document behind after move",
			zap.String("path", oldDoc), zap.Error(err))
	}
	if err := os.Remove(oldAudio); err != nil {
		s.logger.Warn("Leaving stale audio behind after move",
			zap.String("path", oldAudio), zap.Error(err))
	}
	return nil
}

// Delete removes a recording's document and audio file.
func (s *Store) Delete(rec *entities.Recording) error {
	doc := s.DocumentPath(rec)
	if err := os.Remove(doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &repositories.FilesystemError{Op: "delete document", Path: doc, Err: err}
	}
	audio := s.AudioPath(rec)
	if err := os.Remove(audio); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &repositories.FilesystemError{Op: "delete audio", Path: audio, Err: err}
	}
	return nil
}

// ImportAudio copies an external audio file into the folder's raw directory
// and returns the stored filename. Name collisions get a unique prefix.
func (s *Store) ImportAudio(src, folder string) (string, error) {
	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}
	name := filepath.Base(src)
	dst := filepath.Join(s.rawDir(folder), name)
	if _, err := os.Stat(dst); err == nil {
		name = uuid.NewString()[:8] + "-" + name
		dst = filepath.Join(s.rawDir(folder), name)
	}
	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return "", &repositories.FilesystemError{Op: "import audio", Path: dst, Err: err}
	}
	return name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func verifyCopy(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return err
	}
	if srcInfo.Size() != dstInfo.Size() {
		return fmt.Errorf("size mismatch: %d != %d", srcInfo.Size(), dstInfo.Size())
	}
	return nil
}
