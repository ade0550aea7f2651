package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pbk-go/internal/config"
	"pbk-go/internal/database"
	"pbk-go/internal/encryption"
	"pbk-go/internal/fs"
	"pbk-go/internal/model"
	"pbk-go/internal/pbk"
	"pbk-go/internal/vault"
)

// Options adjusts how NewPBKApp wires the application.
type Options struct {
	// Console receives log records at info level and above. Defaults to os.Stderr.
	Console io.Writer

	// VaultName selects a configured vault. Empty selects the first one.
	VaultName string

	// Clock defaults to pbk.RealClock.
	Clock pbk.Clock
}

// PBKApp is the application layer between the CLI and PBKService.
// It constructs all dependencies from config, resolves configured paths
// against the project directory, and records every mutating command in the
// history database.
type PBKApp struct {
	cfg       *config.Config
	db        pbk.Database
	vault     pbk.Vault
	encryptor pbk.Encryptor
	service   *pbk.PBKService
	op        *Operation
	clock     pbk.Clock
	logger    *slog.Logger
	logFile   *os.File

	sourceDir    string
	backupDir    string
	snapshotDir  string
	databasePath string

	// mu serializes backups started by the scheduler and the caller.
	mu sync.Mutex
}

// NewPBKApp creates a fully wired PBKApp from the given config.
// operation identifies the CLI command being run (e.g. "backup", "restore")
// and parameters is stored with it in the history.
// The caller must call Close when done.
func NewPBKApp(cfg *config.Config, operation, parameters string, opts Options) (*PBKApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = pbk.RealClock{}
	}

	sourceDir, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving source directory: %w", err)
	}
	resolved := *cfg
	resolved.SourceDir = sourceDir

	patterns := append(append([]string{}, fs.DefaultExcludePatterns...), cfg.Exclude...)
	filePatterns, err := fs.ParseIgnoreFile(filepath.Join(sourceDir, fs.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, filePatterns...)

	var v pbk.Vault
	if len(cfg.Vaults) > 0 {
		vcfg, err := cfg.Vault(opts.VaultName)
		if err != nil {
			return nil, err
		}
		v, err = vault.NewVaultFromConfig(vcfg)
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if m, ok := db.(interface{ CheckMigrations() error }); ok {
		if err := m.CheckMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	now := opts.Clock.Now()
	opID := now.UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Console)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &PBKApp{
		cfg:          cfg,
		db:           db,
		vault:        v,
		encryptor:    enc,
		op:           NewOperation(operation, parameters, now),
		clock:        opts.Clock,
		logger:       logger,
		logFile:      logFile,
		sourceDir:    sourceDir,
		backupDir:    resolved.ResolvePath(cfg.BackupDir),
		snapshotDir:  resolved.ResolvePath(cfg.SnapshotDir),
		databasePath: resolved.ResolvePath(cfg.DatabasePath),
	}

	a.service = pbk.NewPBKService(pbk.Options{
		ProjectName:    cfg.ProjectName,
		SourceDir:      sourceDir,
		BackupDir:      a.backupDir,
		SnapshotDir:    a.snapshotDir,
		CheckIntegrity: cfg.CheckIntegrity,
		Exclude:        fs.NewIgnoreMatcher(patterns),
	}, db, fs.NewOSFilesystemManager(), database.NewSQLiteIntegrityChecker(), v, enc,
		&slogAdapter{l: logger}, opts.Clock, pbk.UUIDGenerator{})

	return a, nil
}

// Service returns the underlying service.
func (a *PBKApp) Service() *pbk.PBKService {
	return a.service
}

// Operation returns the operation recorded for this command.
func (a *PBKApp) Operation() *Operation {
	return a.op
}

// BackupDir returns the resolved backup directory.
func (a *PBKApp) BackupDir() string {
	return a.backupDir
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *PBKApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters, a.op.StartedAt)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Manifest returns the configured manifest, or the built-in one when none
// is configured. Entries without a category get one from their extension.
func (a *PBKApp) Manifest() ([]pbk.ManifestEntry, error) {
	if len(a.cfg.Manifest) == 0 {
		return pbk.DefaultManifest(), nil
	}

	manifest := make([]pbk.ManifestEntry, 0, len(a.cfg.Manifest))
	for _, e := range a.cfg.Manifest {
		c := pbk.CategoryFor(e.Path)
		if strings.TrimSpace(e.Category) != "" {
			var err error
			c, err = pbk.ParseCategory(e.Category)
			if err != nil {
				return nil, fmt.Errorf("manifest entry %s: %w", e.Path, err)
			}
		}
		manifest = append(manifest, pbk.ManifestEntry{Path: e.Path, Category: c})
	}
	return manifest, nil
}

// RunBackup runs the composer over the manifest and records the run.
// An empty versionNote falls back to the configured one. withDatabase
// controls whether the configured database file is included.
func (a *PBKApp) RunBackup(versionNote string, withDatabase bool) (*pbk.Run, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	run, err := a.backup(a.op.ID, versionNote, withDatabase)
	return run, a.op.Fail(err)
}

func (a *PBKApp) backup(operationID int64, versionNote string, withDatabase bool) (*pbk.Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if versionNote == "" {
		versionNote = a.cfg.VersionNote
	}
	manifest, err := a.Manifest()
	if err != nil {
		return nil, err
	}
	dbPath := ""
	if withDatabase {
		dbPath = a.databasePath
	}

	run, err := a.service.RunBackup(manifest, dbPath, versionNote)
	if err != nil {
		return nil, err
	}
	if err := a.service.RecordRun(run, operationID, versionNote); err != nil {
		a.logger.Warn("backup run not recorded", "error", err)
	}
	return run, nil
}

func (a *PBKApp) requireDatabase() error {
	if a.databasePath == "" {
		return fmt.Errorf("database_path is not configured")
	}
	return nil
}

// Snapshot copies the configured database into the snapshot directory.
func (a *PBKApp) Snapshot(checkIntegrity bool, confirm pbk.Confirmer) (string, error) {
	if err := a.requireDatabase(); err != nil {
		return "", err
	}
	if err := a.persistOperation(); err != nil {
		return "", err
	}
	path, err := a.service.SnapshotDatabase(a.databasePath, checkIntegrity, confirm)
	return path, a.op.Fail(err)
}

// Snapshots lists the snapshots of the configured database, newest first.
func (a *PBKApp) Snapshots() ([]*pbk.Snapshot, error) {
	if err := a.requireDatabase(); err != nil {
		return nil, err
	}
	return a.service.ListSnapshots(a.databasePath)
}

// CleanupSnapshots keeps the newest keep snapshots. A negative keep uses
// the configured keep_snapshots.
func (a *PBKApp) CleanupSnapshots(keep int) (int, error) {
	if err := a.requireDatabase(); err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = a.cfg.KeepSnapshots
	}
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	n, err := a.service.CleanupSnapshots(a.databasePath, keep)
	return n, a.op.Fail(err)
}

// ResolveBackupPath locates a database backup given on the command line.
// Relative paths are tried against the working directory, then the snapshot
// directory, then the newest full backup.
func (a *PBKApp) ResolveBackupPath(raw string) (string, error) {
	if filepath.IsAbs(raw) {
		return raw, nil
	}

	candidates := []string{}
	if abs, err := filepath.Abs(raw); err == nil {
		candidates = append(candidates, abs)
	}
	candidates = append(candidates, filepath.Join(a.snapshotDir, raw))
	if backups, err := a.service.ListBackups(); err == nil && len(backups) > 0 {
		candidates = append(candidates, filepath.Join(backups[0].Path, raw))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("backup not found: %s", raw)
}

// Restore replaces the target database with a backup. An empty target
// restores the configured database.
func (a *PBKApp) Restore(backupPath, target string, opts pbk.RestoreOptions, confirm pbk.Confirmer) (*pbk.RestoreResult, error) {
	if target == "" {
		if err := a.requireDatabase(); err != nil {
			return nil, err
		}
		target = a.databasePath
	} else if !filepath.IsAbs(target) {
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, fmt.Errorf("resolving target: %w", err)
		}
		target = abs
	}

	path, err := a.ResolveBackupPath(backupPath)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	res, err := a.service.RestoreDatabase(path, target, opts, confirm)
	return res, a.op.Fail(err)
}

// Backups lists the full backups in the backup directory, newest first.
func (a *PBKApp) Backups() ([]*pbk.BackupInfo, error) {
	return a.service.ListBackups()
}

// Push uploads a backup directory to the vault. An empty path pushes the
// newest full backup.
func (a *PBKApp) Push(rawPath string) (string, error) {
	root := rawPath
	if root == "" {
		backups, err := a.service.ListBackups()
		if err != nil {
			return "", err
		}
		if len(backups) == 0 {
			return "", fmt.Errorf("no backups found in %s", a.backupDir)
		}
		root = backups[0].Path
	} else {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("resolving path: %w", err)
		}
		root = abs
	}

	if err := a.persistOperation(); err != nil {
		return "", err
	}
	name, err := a.service.PushBackup(root)
	return name, a.op.Fail(err)
}

// Fetch downloads an archive into destDir, or into the backup directory when
// destDir is empty. passphrase is asked only for encrypted archives.
func (a *PBKApp) Fetch(name, destDir string, passphrase func() (string, error)) (string, error) {
	if destDir == "" {
		destDir = a.backupDir
	}

	var ctx pbk.DecryptionContext
	if pbk.IsEncryptedArchive(name) {
		if a.encryptor == nil {
			return "", fmt.Errorf("archive %s is encrypted but encryption is not enabled", name)
		}
		pass, err := passphrase()
		if err != nil {
			return "", err
		}
		ctx, err = a.encryptor.Unlock(pass)
		if err != nil {
			return "", fmt.Errorf("unlocking private key: %w", err)
		}
	}

	if err := a.persistOperation(); err != nil {
		return "", err
	}
	dir, err := a.service.FetchBackup(name, destDir, ctx)
	return dir, a.op.Fail(err)
}

// Archives lists the archives stored in the vault.
func (a *PBKApp) Archives() ([]string, error) {
	return a.service.ListArchives()
}

// ValidateVault checks that the configured vault is reachable.
func (a *PBKApp) ValidateVault() error {
	if a.vault == nil {
		return pbk.ErrNoVault
	}
	return a.vault.ValidateSetup()
}

// EncryptionConfigured reports whether archives will be encrypted and the
// key pair exists.
func (a *PBKApp) EncryptionConfigured() bool {
	return a.encryptor != nil && a.encryptor.IsConfigured()
}

// InitKeys generates the archive encryption key pair.
func (a *PBKApp) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return errors.New("encryption is not enabled in config")
	}
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.op.Fail(a.encryptor.Setup(passphrase))
}

// History returns the most recent operations.
func (a *PBKApp) History(limit int) ([]*model.Operation, error) {
	return a.service.GetHistory(limit)
}

// Runs returns the most recent backup runs.
func (a *PBKApp) Runs(limit int) ([]*model.BackupRun, error) {
	return a.service.GetRuns(limit)
}

// Close finalizes the operation and closes all resources.
func (a *PBKApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
