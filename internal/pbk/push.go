package pbk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"pbk-go/internal/archive"
)

const (
	archiveExt   = ".tar.gz"
	encryptedExt = ".age"
)

// ErrNoVault is returned by push and fetch operations when no vault is configured.
var ErrNoVault = errors.New("no vault configured")

// PushBackup archives a backup directory and stores it in the vault.
// When an encryptor is configured the archive is encrypted before upload.
// The archive is staged next to the backup directory while it is uploaded.
// Returns the archive name.
func (s *PBKService) PushBackup(root string) (string, error) {
	if s.vault == nil {
		return "", ErrNoVault
	}

	root = filepath.Clean(root)
	info, err := s.fsmgr.Stat(root)
	if err != nil {
		return "", fmt.Errorf("stat backup: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("backup is not a directory: %s", root)
	}

	name := filepath.Base(root) + archiveExt
	if s.encryptor != nil {
		name += encryptedExt
	}

	staged := stagingPath(filepath.Dir(root), name)
	defer s.removeStaged(staged)
	if err := s.writeArchive(staged, root); err != nil {
		return "", err
	}

	stat, err := s.fsmgr.Stat(staged)
	if err != nil {
		return "", fmt.Errorf("measuring archive: %w", err)
	}
	f, err := s.fsmgr.Open(staged)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	if err := s.vault.PutArchive(name, f, stat.Size()); err != nil {
		return "", fmt.Errorf("uploading archive: %w", err)
	}

	s.logger.Info("backup pushed", "root", root, "archive", name, "size", stat.Size())
	return name, nil
}

// writeArchive writes the tar.gz of root to path, encrypting it when an
// encryptor is configured.
func (s *PBKService) writeArchive(path, root string) error {
	out, err := s.fsmgr.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	if s.encryptor != nil {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(archive.TarDir(pw, s.fsmgr, root))
		}()
		encErr := s.encryptor.Encrypt(pr, out)
		pr.CloseWithError(encErr) // unblock the archiver if Encrypt failed early
		if encErr != nil {
			out.Close()
			return fmt.Errorf("encrypting archive: %w", encErr)
		}
	} else if err := archive.TarDir(out, s.fsmgr, root); err != nil {
		out.Close()
		return fmt.Errorf("archiving backup: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// stagingPath names the hidden file an archive is staged in under dir.
func stagingPath(dir, name string) string {
	return filepath.Join(dir, "."+name+".part")
}

func (s *PBKService) removeStaged(path string) {
	if err := s.fsmgr.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("staged archive not removed", "path", path, "error", err)
	}
}

// IsEncryptedArchive reports whether an archive name denotes an encrypted archive.
func IsEncryptedArchive(name string) bool {
	return strings.HasSuffix(name, encryptedExt)
}

// FetchBackup downloads an archive from the vault and extracts it into destDir.
// decryptCtx is required for encrypted archives and ignored otherwise.
// Returns the extracted backup directory.
func (s *PBKService) FetchBackup(name, destDir string, decryptCtx DecryptionContext) (string, error) {
	if s.vault == nil {
		return "", ErrNoVault
	}
	encrypted := IsEncryptedArchive(name)
	if encrypted && decryptCtx == nil {
		return "", fmt.Errorf("archive is encrypted but no passphrase was provided")
	}

	if err := s.fsmgr.MkdirAll(destDir); err != nil {
		return "", fmt.Errorf("creating destination: %w", err)
	}

	staged := stagingPath(destDir, name)
	defer s.removeStaged(staged)
	if err := s.download(name, staged); err != nil {
		return "", err
	}

	tmp, err := s.fsmgr.Open(staged)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer tmp.Close()

	var dir string
	if encrypted {
		// Pipe the decryptor straight into the extractor, no intermediate plaintext file.
		pr, pw := io.Pipe()
		decryptErrCh := make(chan error, 1)
		go func() {
			err := decryptCtx.Decrypt(tmp, pw)
			pw.CloseWithError(err)
			decryptErrCh <- err
		}()

		dir, err = archive.Extract(pr, s.fsmgr, destDir)
		pr.CloseWithError(err) // unblock the decryptor if extraction stopped early
		decryptErr := <-decryptErrCh
		if err != nil {
			if decryptErr != nil {
				return "", fmt.Errorf("decrypting archive: %w", decryptErr)
			}
			return "", fmt.Errorf("extracting archive: %w", err)
		}
	} else {
		dir, err = archive.Extract(tmp, s.fsmgr, destDir)
		if err != nil {
			return "", fmt.Errorf("extracting archive: %w", err)
		}
	}

	s.logger.Info("backup fetched", "archive", name, "dest", dir)
	return dir, nil
}

// download writes the named archive from the vault to path.
func (s *PBKService) download(name, path string) error {
	out, err := s.fsmgr.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if err := s.vault.GetArchive(name, out); err != nil {
		out.Close()
		return fmt.Errorf("downloading archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// ListArchives returns the archive names stored in the vault.
func (s *PBKService) ListArchives() ([]string, error) {
	if s.vault == nil {
		return nil, ErrNoVault
	}
	names, err := s.vault.ListArchives()
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	return names, nil
}
