package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pbk-go/internal/app"
	"pbk-go/internal/config"
	"pbk-go/internal/pbk"
	"pbk-go/internal/prompt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies PBK_* environment overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", fmt.Errorf("reading environment: %w", err)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaults["log_dir"]
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a PBKApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "backup", "restore").
func newApp(cmd *cobra.Command, operation, parameters string) (*app.PBKApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	vaultName, _ := cmd.Flags().GetString("vault")
	a, err := app.NewPBKApp(cfg, operation, parameters, app.Options{VaultName: vaultName})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func newPrompter(cmd *cobra.Command) *prompt.Prompter {
	yes, _ := cmd.Flags().GetBool("yes")
	return prompt.New(os.Stdin, os.Stderr, yes)
}

func size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

var rootCmd = &cobra.Command{
	Use:          "pbk",
	Short:        "Project backup kit",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			if source, err = os.Getwd(); err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
		}
		if source, err = filepath.Abs(source); err != nil {
			return fmt.Errorf("resolving source directory: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], source)
		cfg.DatabasePath, _ = cmd.Flags().GetString("database")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Project:  %s\n", cfg.SourceDir)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Project:        %s\n", cfg.ProjectName)
		fmt.Printf("Source Dir:     %s\n", cfg.SourceDir)
		fmt.Printf("Backup Dir:     %s\n", cfg.ResolvePath(cfg.BackupDir))
		fmt.Printf("Snapshot Dir:   %s\n", cfg.ResolvePath(cfg.SnapshotDir))
		fmt.Printf("Database:       %s\n", cfg.ResolvePath(cfg.DatabasePath))
		fmt.Printf("Integrity:      %t\n", cfg.CheckIntegrity)
		fmt.Printf("Keep Snapshots: %d\n", cfg.KeepSnapshots)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		if cfg.Schedule != "" {
			fmt.Printf("Schedule:       %s\n", cfg.Schedule)
		}
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:          %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption:     %t\n", cfg.Encryption.Enabled)
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Check that the configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "config vault", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVault(); err != nil {
			return fmt.Errorf("vault check failed: %w", err)
		}
		fmt.Println("Vault is reachable.")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "keys init", "")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := newPrompter(cmd).NewPassphrase()
		if err != nil {
			return err
		}
		if err := a.InitKeys(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a full project backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("version-note")
		noDB, _ := cmd.Flags().GetBool("no-db")

		a, err := newApp(cmd, "backup", note)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.RunBackup(note, !noDB)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup created: %s\n", run.Root)
		fmt.Printf("Copied:  %d file(s)\n", len(run.CopiedFiles))
		fmt.Printf("Skipped: %d file(s)\n", len(run.SkippedFiles))
		for _, e := range run.Entries {
			if e.Status == pbk.StatusSkipped {
				fmt.Printf("  - %s (%s)\n", e.Source, e.Reason)
			}
		}
		fmt.Printf("Size:    %s\n", size(run.TotalSizeBytes))
		if run.ReportErr != nil {
			fmt.Printf("Warning: %v\n", run.ReportErr)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage database snapshots",
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the database into the snapshot directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		noCheck, _ := cmd.Flags().GetBool("no-integrity-check")

		a, err := newApp(cmd, "db snapshot", "")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Snapshot(!noCheck, newPrompter(cmd).Confirmer())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("Snapshot created: %s\n", path)
		return nil
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List database snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "db list", "")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.Snapshots()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots found.")
			return nil
		}
		for i, s := range snaps {
			fmt.Printf("%3d. %s  %8s  %s\n", i+1, s.Name, size(s.Size), s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var dbCleanupCmd = &cobra.Command{
	Use:   "cleanup [KEEP]",
	Short: "Remove all but the newest KEEP snapshots",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := -1
		if len(args) > 0 {
			n, err := cast.ToIntE(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid snapshot count: %s", args[0])
			}
			keep = n
		}

		a, err := newApp(cmd, "db cleanup", fmt.Sprint(keep))
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.CleanupSnapshots(keep)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d snapshot(s)\n", removed)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the database from a snapshot or backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		backupPath, _ := cmd.Flags().GetString("backup")
		target, _ := cmd.Flags().GetString("target")
		noBefore, _ := cmd.Flags().GetBool("no-backup-before")
		noCheck, _ := cmd.Flags().GetBool("no-integrity-check")

		a, err := newApp(cmd, "restore", backupPath)
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd)
		if backupPath == "" {
			backupPath, err = chooseBackup(a, p)
			if err != nil {
				return err
			}
		}

		ok, err := p.Confirm(fmt.Sprintf("Replace the database with %s?", filepath.Base(backupPath)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Restore cancelled.")
			return nil
		}

		res, err := a.Restore(backupPath, target, pbk.RestoreOptions{
			BackupBefore:   !noBefore,
			CheckIntegrity: !noCheck,
		}, p.Confirmer())
		if errors.Is(err, pbk.ErrCancelled) {
			fmt.Println("Restore cancelled.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Database restored: %s (%s)\n", res.Target, size(res.Size))
		if res.PreRestoreBackup != "" {
			fmt.Printf("Previous database saved to %s\n", res.PreRestoreBackup)
		}
		if !noCheck && !res.IntegrityOK {
			fmt.Println("Warning: the restored database did not pass the integrity check.")
		}
		return nil
	},
}

// chooseBackup offers the database snapshots and the database copies of
// full backups, newest first.
func chooseBackup(a *app.PBKApp, p *prompt.Prompter) (string, error) {
	var paths, labels []string

	snaps, err := a.Snapshots()
	if err != nil {
		return "", err
	}
	for _, s := range snaps {
		paths = append(paths, s.Path)
		labels = append(labels, fmt.Sprintf("%s  (%s, %s)", s.Name, size(s.Size), humanize.Time(s.CreatedAt)))
	}

	backups, err := a.Backups()
	if err != nil {
		return "", err
	}
	for _, b := range backups {
		if b.Meta == nil || b.Meta.DatabaseFile == "" {
			continue
		}
		paths = append(paths, filepath.Join(b.Path, string(pbk.CategoryDatabase), b.Meta.DatabaseFile))
		labels = append(labels, fmt.Sprintf("%s/%s  (%s)", b.Name, b.Meta.DatabaseFile, humanize.Time(b.Meta.Date)))
	}

	if len(paths) == 0 {
		return "", fmt.Errorf("no database backups found")
	}
	i, err := p.Choose("Available database backups:", labels)
	if err != nil {
		return "", err
	}
	return paths[i], nil
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List full backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "backups", "")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, b := range backups {
			if b.Meta == nil {
				fmt.Printf("%s\n", b.Name)
				continue
			}
			fmt.Printf("%s  %8s  copied:%-3d skipped:%-3d %s\n",
				b.Name,
				size(b.Meta.TotalSize),
				len(b.Meta.Copied),
				len(b.Meta.Skipped),
				b.Meta.VersionNote,
			)
		}
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push [PATH]",
	Short: "Upload a backup to the vault (default: newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		a, err := newApp(cmd, "push", path)
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Push(path)
		if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}
		fmt.Printf("Uploaded %s\n", name)
		return nil
	},
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch NAME",
	Short: "Download and extract a backup archive from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")

		a, err := newApp(cmd, "fetch", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd)
		dir, err := a.Fetch(args[0], dest, func() (string, error) {
			return p.Passphrase("Passphrase")
		})
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		fmt.Printf("Backup extracted to %s\n", dir)
		return nil
	},
}

// archives command
var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archives stored in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "archives", "")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Archives()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No archives found.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", "")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "View recorded backup runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "runs", "")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.Runs(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No backup runs recorded.")
			return nil
		}

		for _, r := range runs {
			fmt.Printf("%s  copied:%-3d skipped:%-3d %8s  %s\n",
				pbk.BackupDirName(r.Timestamp),
				r.CopiedCount,
				r.SkippedCount,
				size(r.TotalSize),
				r.VersionNote,
			)
		}
		return nil
	},
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule [CRON]",
	Short: "Run backups on a cron schedule until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := ""
		if len(args) > 0 {
			expr = args[0]
		}
		note, _ := cmd.Flags().GetString("version-note")

		a, err := newApp(cmd, "schedule", expr)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Schedule(ctx, expr, note, func(r app.ScheduledRun) {
			if r.Err != nil {
				fmt.Printf("Backup failed: %v\n", r.Err)
				return
			}
			fmt.Printf("Backup created: %s (%d copied, %d skipped)\n",
				r.Run.Root, len(r.Run.CopiedFiles), len(r.Run.SkippedFiles))
		})
	},
}

func init() {
	rootCmd.PersistentFlags().String("vault", "", "Vault name (default: first configured vault)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("source", "", "Project directory (default: current directory)")
	configInitCmd.Flags().String("database", "", "Project database path, relative to the project")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbSnapshotCmd)
	dbSnapshotCmd.Flags().Bool("no-integrity-check", false, "Skip the database integrity check")
	dbSnapshotCmd.Flags().BoolP("yes", "y", false, "Continue without asking when the check fails")
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbCleanupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().String("version-note", "", "Version note recorded in the report (default: from config)")
	backupCmd.Flags().Bool("no-db", false, "Do not include the database")
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().String("backup", "", "Database backup to restore (default: choose interactively)")
	restoreCmd.Flags().String("target", "", "Database to replace (default: from config)")
	restoreCmd.Flags().Bool("no-backup-before", false, "Do not save the current database first")
	restoreCmd.Flags().Bool("no-integrity-check", false, "Skip the integrity checks")
	restoreCmd.Flags().BoolP("yes", "y", false, "Answer yes to every question")
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("dest", "", "Extract into this directory (default: backup directory)")
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().String("version-note", "", "Version note for scheduled backups (default: from config)")
}
