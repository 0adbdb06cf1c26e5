package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cesargomez89/tracksync/internal/constants"
)

func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidPathChars, r) || r < 0x20 {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(strings.TrimSpace(mapped), ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// RemoveFile deletes path, treating an already-missing file as success.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

// FileNonEmpty reports whether path is a regular file with content.
func FileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// IsAudioFile reports whether name has one of the known audio extensions.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range constants.AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// ListAudioFiles returns the audio file names directly inside folder in
// lexical order. A missing folder yields an empty list.
func ListAudioFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if IsAudioFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// artifactSuffix matches what the fetch tool appends to a base name: media and
// thumbnail extensions, format ids, fragment and temp markers, in any chain.
var artifactSuffix = regexp.MustCompile(`(?i)^(?:\.(?:mp3|m4a|flac|opus|ogg|oga|wav|aac|webm|mp4|mkv|3gp|jpe?g|webp|png|part|ytdl|temp|tmp|f\d+(?:-\d+)?|part-frag\d+))+$`)

// IsArtifactOf reports whether name is baseName plus only fetch-tool suffixes,
// such as "x.mp3", "x.webm.part" or "x.f251.webm". "x. Other.mp3" is not.
func IsArtifactOf(name, baseName string) bool {
	if !strings.HasPrefix(name, baseName) {
		return false
	}
	return artifactSuffix.MatchString(name[len(baseName):])
}

// RemovePartials deletes the files in folder that are artifacts of baseName:
// temp downloads, .part files, intermediate containers and a final file that
// was not confirmed. Files of other tracks sharing the prefix are kept.
func RemovePartials(folder, baseName string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !IsArtifactOf(e.Name(), baseName) {
			continue
		}
		if err := RemoveFile(filepath.Join(folder, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, errors.Join(errs...)
}

// WriteFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path. Readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, constants.TempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	success = true
	return nil
}
