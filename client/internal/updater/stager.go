package updater

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	updateDirName = "Update"
	archiveName   = "update.zip"
)

// StagedPackage is the transient filesystem artifact produced by
// staging. The archive is deleted once extraction succeeds;
// ExtractedPath is the source for replication.
type StagedPackage struct {
	ArchivePath   string
	ExtractedPath string
}

// Stager persists a downloaded payload under a per-service staging root
// and unpacks it into the Update sub-directory.
type Stager struct {
	root string
}

// NewStager derives the staging root from the machine-wide temporary
// files location and the service name.
func NewStager(serviceName string) *Stager {
	return &Stager{
		root: filepath.Join(os.TempDir(), strings.ToLower(serviceName)),
	}
}

// NewStagerWithRoot uses an explicit staging root.
func NewStagerWithRoot(root string) *Stager {
	return &Stager{root: root}
}

// Root returns the staging root directory.
func (s *Stager) Root() string {
	return s.root
}

// Stage writes the payload to an archive file inside the staging root,
// extracts it into a fresh Update sub-directory and removes the
// archive. No stale content from a previous attempt survives.
func (s *Stager) Stage(payload []byte) (StagedPackage, error) {
	extractDir := filepath.Join(s.root, updateDirName)

	// Clear any leftovers from a previous attempt before anything else.
	if err := os.RemoveAll(extractDir); err != nil {
		return StagedPackage{}, fmt.Errorf("%w: clear staging dir %s: %v", ErrArchive, extractDir, err)
	}
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return StagedPackage{}, fmt.Errorf("%w: create staging dir %s: %v", ErrArchive, extractDir, err)
	}

	archivePath := filepath.Join(s.root, archiveName)
	if err := os.WriteFile(archivePath, payload, 0o644); err != nil {
		return StagedPackage{}, fmt.Errorf("%w: write archive %s: %v", ErrArchive, archivePath, err)
	}

	if err := extractZip(archivePath, extractDir); err != nil {
		return StagedPackage{}, fmt.Errorf("%w: extract %s: %v", ErrArchive, archivePath, err)
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return StagedPackage{}, fmt.Errorf("%w: read extraction dir %s: %v", ErrArchive, extractDir, err)
	}
	if len(entries) == 0 {
		return StagedPackage{}, fmt.Errorf("%w: archive extracted to an empty tree", ErrArchive)
	}

	if err := os.Remove(archivePath); err != nil {
		log.Warnf("failed to remove archive %s: %v", archivePath, err)
	}

	log.Debugf("staged update package at %s", extractDir)
	return StagedPackage{
		ArchivePath:   archivePath,
		ExtractedPath: extractDir,
	}, nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			log.Warnf("error closing archive %s: %v", src, cerr)
		}
	}()

	for _, f := range r.File {
		rel := filepath.Clean(filepath.FromSlash(f.Name))
		// Prevent path traversal
		if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return fmt.Errorf("illegal entry path %q", f.Name)
		}

		target := filepath.Join(dest, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}

		if err := extractZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", target, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			log.Warnf("error closing archive entry %s: %v", f.Name, cerr)
		}
	}()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Warnf("error closing %s: %v", target, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	return nil
}
