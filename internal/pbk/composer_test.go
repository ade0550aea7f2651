package pbk_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"pbk-go/internal/fs"
	"pbk-go/internal/pbk"
	"pbk-go/internal/testutil"
)

const (
	projectDir = "/project"
	backupDir  = "/project/backup"
	ts         = "20240115_103000"
	backupRoot = "/project/backup/full_backup_20240115_103000"
)

type testEnv struct {
	svc       *pbk.PBKService
	fsmgr     *testutil.MockFilesystemManager
	clock     *testutil.StubClock
	integrity *testutil.StubIntegrityChecker
	db        pbk.Database
}

func newTestEnv(t *testing.T, mutate ...func(*pbk.Options)) *testEnv {
	t.Helper()

	opts := pbk.Options{
		ProjectName:    "telegram-ref-bot",
		SourceDir:      projectDir,
		BackupDir:      backupDir,
		SnapshotDir:    "/project/backup/database",
		CheckIntegrity: true,
	}
	for _, m := range mutate {
		m(&opts)
	}

	env := &testEnv{
		fsmgr:     testutil.NewMockFilesystemManager(),
		clock:     testutil.FixedClock(),
		integrity: testutil.NewStubIntegrityChecker(),
		db:        testutil.NewTestDatabase(t),
	}
	env.fsmgr.AddDirectory(projectDir)
	env.svc = pbk.NewPBKService(opts, env.db, env.fsmgr, env.integrity, testutil.NewTestVault(), nil,
		pbk.NewNopLogger(), env.clock, testutil.NewStubIDGenerator())
	return env
}

func TestRunBackup_AllSourcesExist(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("print('bot')"))
	env.fsmgr.AddFile("/project/FINAL_SETUP.md", []byte("# setup"))
	env.fsmgr.AddFile("/project/setup_github.bat", []byte("@echo off"))

	manifest := []pbk.ManifestEntry{
		{Path: "bot.py", Category: pbk.CategoryCode},
		{Path: "FINAL_SETUP.md", Category: pbk.CategoryDocs},
		{Path: "setup_github.bat", Category: pbk.CategoryScripts},
	}

	run, err := env.svc.RunBackup(manifest, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if run.Timestamp != ts {
		t.Errorf("Timestamp = %q, want %q", run.Timestamp, ts)
	}
	if run.Root != backupRoot {
		t.Errorf("Root = %q, want %q", run.Root, backupRoot)
	}
	if want := []string{"bot.py", "FINAL_SETUP.md", "setup_github.bat"}; !reflect.DeepEqual(run.CopiedFiles, want) {
		t.Errorf("CopiedFiles = %v, want %v", run.CopiedFiles, want)
	}
	if len(run.SkippedFiles) != 0 {
		t.Errorf("SkippedFiles = %v, want empty", run.SkippedFiles)
	}

	for path, want := range map[string]string{
		backupRoot + "/code/bot.py":              "print('bot')",
		backupRoot + "/docs/FINAL_SETUP.md":      "# setup",
		backupRoot + "/scripts/setup_github.bat": "@echo off",
	} {
		f := env.fsmgr.File(path)
		if f == nil {
			t.Errorf("%s not created", path)
			continue
		}
		if string(f.Content) != want {
			t.Errorf("%s = %q, want %q", path, f.Content, want)
		}
	}

	for _, c := range pbk.Categories {
		if !env.fsmgr.Exists(filepath.Join(backupRoot, string(c))) {
			t.Errorf("category directory %s not created", c)
		}
	}
	for _, name := range []string{"README.md", "file_list.txt", pbk.MetaFileName} {
		if !env.fsmgr.Exists(filepath.Join(backupRoot, name)) {
			t.Errorf("%s not written", name)
		}
	}
	if run.ReportErr != nil {
		t.Errorf("ReportErr = %v", run.ReportErr)
	}
}

func TestRunBackup_PreservesModificationTime(t *testing.T) {
	env := newTestEnv(t)
	mtime := time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC)
	env.fsmgr.AddFileWithTime("/project/bot.py", []byte("x"), mtime)

	if _, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "", "v1"); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	f := env.fsmgr.File(backupRoot + "/code/bot.py")
	if f == nil {
		t.Fatal("copy not created")
	}
	if !f.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", f.ModTime, mtime)
	}
}

func TestRunBackup_MissingSource(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))

	manifest := []pbk.ManifestEntry{
		{Path: "bot.py", Category: pbk.CategoryCode},
		{Path: "states.py", Category: pbk.CategoryCode},
	}
	run, err := env.svc.RunBackup(manifest, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if !reflect.DeepEqual(run.SkippedFiles, []string{"states.py"}) {
		t.Errorf("SkippedFiles = %v, want [states.py]", run.SkippedFiles)
	}
	if env.fsmgr.Exists(backupRoot + "/code/states.py") {
		t.Error("missing source produced a destination file")
	}
	if run.Entries[1].Reason != pbk.ReasonNotFound {
		t.Errorf("Reason = %q, want %q", run.Entries[1].Reason, pbk.ReasonNotFound)
	}
}

func TestRunBackup_CopyFailureIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))
	env.fsmgr.AddFile("/project/states.py", []byte("y"))
	env.fsmgr.FailOpen("/project/bot.py", errors.New("permission denied"))

	manifest := []pbk.ManifestEntry{
		{Path: "bot.py", Category: pbk.CategoryCode},
		{Path: "states.py", Category: pbk.CategoryCode},
	}
	run, err := env.svc.RunBackup(manifest, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if !reflect.DeepEqual(run.CopiedFiles, []string{"states.py"}) {
		t.Errorf("CopiedFiles = %v", run.CopiedFiles)
	}
	if !reflect.DeepEqual(run.SkippedFiles, []string{"bot.py"}) {
		t.Errorf("SkippedFiles = %v", run.SkippedFiles)
	}
	if !strings.Contains(run.Entries[0].Reason, "permission denied") {
		t.Errorf("Reason = %q, want copy failure", run.Entries[0].Reason)
	}
}

func TestRunBackup_PartialWriteIsRemoved(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))
	env.fsmgr.FailWrite(backupRoot+"/code/bot.py", errors.New("disk full"))

	run, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if len(run.SkippedFiles) != 1 {
		t.Fatalf("SkippedFiles = %v, want [bot.py]", run.SkippedFiles)
	}
	if env.fsmgr.Exists(backupRoot + "/code/bot.py") {
		t.Error("partial copy left behind")
	}
}

func TestRunBackup_Excluded(t *testing.T) {
	env := newTestEnv(t, func(o *pbk.Options) {
		o.Exclude = fs.NewIgnoreMatcher(fs.DefaultExcludePatterns)
	})
	env.fsmgr.AddFile("/project/.env", []byte("TOKEN=secret"))
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))

	manifest := []pbk.ManifestEntry{
		{Path: ".env", Category: pbk.CategoryCode},
		{Path: "bot.py", Category: pbk.CategoryCode},
	}
	run, err := env.svc.RunBackup(manifest, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if !reflect.DeepEqual(run.SkippedFiles, []string{".env"}) {
		t.Errorf("SkippedFiles = %v, want [.env]", run.SkippedFiles)
	}
	if run.Entries[0].Reason != pbk.ReasonExcluded {
		t.Errorf("Reason = %q, want %q", run.Entries[0].Reason, pbk.ReasonExcluded)
	}
	if env.fsmgr.Exists(backupRoot + "/code/.env") {
		t.Error("excluded file was copied")
	}
}

func TestRunBackup_DirectoryCreationFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))
	diskErr := errors.New("read-only file system")
	env.fsmgr.FailMkdir(backupRoot+"/database", diskErr)

	run, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "", "v1")
	if err == nil {
		t.Fatal("RunBackup() expected error")
	}
	if !errors.Is(err, diskErr) {
		t.Errorf("error %v does not wrap the I/O error", err)
	}
	if run != nil {
		t.Errorf("run = %+v, want nil", run)
	}
	if env.fsmgr.Exists(backupRoot + "/code/bot.py") {
		t.Error("files copied after fatal error")
	}
}

func TestRunBackup_Database(t *testing.T) {
	t.Run("copies with timestamped name", func(t *testing.T) {
		env := newTestEnv(t)
		env.fsmgr.AddFile("/project/referral_orders.db", []byte("SQLite format 3\x00data"))

		run, err := env.svc.RunBackup(nil, "referral_orders.db", "v1")
		if err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}

		want := "referral_orders_" + ts + ".db"
		if run.DatabaseFile != want {
			t.Errorf("DatabaseFile = %q, want %q", run.DatabaseFile, want)
		}
		f := env.fsmgr.File(backupRoot + "/database/" + want)
		if f == nil || string(f.Content) != "SQLite format 3\x00data" {
			t.Errorf("database copy missing or wrong: %+v", f)
		}
		if !reflect.DeepEqual(run.CopiedFiles, []string{"referral_orders.db"}) {
			t.Errorf("CopiedFiles = %v", run.CopiedFiles)
		}
		if got := env.integrity.Checked(); !reflect.DeepEqual(got, []string{"/project/referral_orders.db"}) {
			t.Errorf("integrity checked %v", got)
		}
	})

	t.Run("integrity failure still copies", func(t *testing.T) {
		env := newTestEnv(t)
		env.fsmgr.AddFile("/project/app.db", []byte("corrupt"))
		env.integrity.Fail("/project/app.db")

		run, err := env.svc.RunBackup(nil, "app.db", "v1")
		if err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}
		if run.DatabaseFile != "app_"+ts+".db" {
			t.Errorf("DatabaseFile = %q", run.DatabaseFile)
		}
	})

	t.Run("integrity check disabled", func(t *testing.T) {
		env := newTestEnv(t, func(o *pbk.Options) { o.CheckIntegrity = false })
		env.fsmgr.AddFile("/project/app.db", []byte("db"))

		if _, err := env.svc.RunBackup(nil, "app.db", "v1"); err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}
		if got := env.integrity.Checked(); len(got) != 0 {
			t.Errorf("integrity checked %v, want none", got)
		}
	})

	t.Run("absolute path is recorded by name", func(t *testing.T) {
		env := newTestEnv(t)
		env.fsmgr.AddFile("/data/app.db", []byte("db"))

		run, err := env.svc.RunBackup(nil, "/data/app.db", "v1")
		if err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}
		if !reflect.DeepEqual(run.CopiedFiles, []string{"app.db"}) {
			t.Errorf("CopiedFiles = %v, want [app.db]", run.CopiedFiles)
		}
		if run.DatabaseFile != "app_"+ts+".db" {
			t.Errorf("DatabaseFile = %q", run.DatabaseFile)
		}
		readme := env.fsmgr.File(backupRoot + "/README.md")
		if readme == nil {
			t.Fatal("README.md not written")
		}
		if strings.Contains(string(readme.Content), "/data/app.db") {
			t.Error("README.md lists the absolute database path")
		}
	})

	t.Run("missing absolute path is skipped by name", func(t *testing.T) {
		env := newTestEnv(t)

		run, err := env.svc.RunBackup(nil, "/data/app.db", "v1")
		if err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}
		if !reflect.DeepEqual(run.SkippedFiles, []string{"app.db"}) {
			t.Errorf("SkippedFiles = %v, want [app.db]", run.SkippedFiles)
		}
	})

	t.Run("missing database is skipped last", func(t *testing.T) {
		env := newTestEnv(t)
		env.fsmgr.AddFile("/project/bot.py", []byte("x"))

		run, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "app.db", "v1")
		if err != nil {
			t.Fatalf("RunBackup() error = %v", err)
		}
		if !reflect.DeepEqual(run.SkippedFiles, []string{"app.db"}) {
			t.Errorf("SkippedFiles = %v, want [app.db]", run.SkippedFiles)
		}
		if run.DatabaseFile != "" {
			t.Errorf("DatabaseFile = %q, want empty", run.DatabaseFile)
		}
	})
}

func TestRunBackup_PartitionsSources(t *testing.T) {
	env := newTestEnv(t)
	manifest := pbk.DefaultManifest()
	// Every other file exists.
	for i, e := range manifest {
		if i%2 == 0 {
			env.fsmgr.AddFile(filepath.Join(projectDir, e.Path), []byte(e.Path))
		}
	}
	env.fsmgr.AddFile("/project/referral_orders.db", []byte("db"))

	run, err := env.svc.RunBackup(manifest, "referral_orders.db", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	var sources []string
	for _, e := range manifest {
		sources = append(sources, e.Path)
	}
	sources = append(sources, "referral_orders.db")

	if got := len(run.CopiedFiles) + len(run.SkippedFiles); got != len(sources) {
		t.Fatalf("copied+skipped = %d, want %d", got, len(sources))
	}
	seen := make(map[string]bool)
	for _, f := range append(append([]string{}, run.CopiedFiles...), run.SkippedFiles...) {
		if seen[f] {
			t.Errorf("%s appears twice", f)
		}
		seen[f] = true
	}
	for _, s := range sources {
		if !seen[s] {
			t.Errorf("%s missing from run", s)
		}
	}

	// Entries follow manifest order with the database last.
	for i, e := range run.Entries {
		if e.Source != sources[i] {
			t.Errorf("Entries[%d] = %s, want %s", i, e.Source, sources[i])
		}
	}
}

func TestRunBackup_TotalSize(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("12345"))
	env.fsmgr.AddFile("/project/app.db", []byte("1234567890"))

	run, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "app.db", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if run.TotalSizeBytes != 15 {
		t.Errorf("TotalSizeBytes = %d, want 15", run.TotalSizeBytes)
	}
}

func TestRunBackup_ReportWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))
	env.fsmgr.FailCreate(backupRoot+"/README.md", errors.New("no space left"))

	run, err := env.svc.RunBackup([]pbk.ManifestEntry{{Path: "bot.py", Category: pbk.CategoryCode}}, "", "v1")
	if err != nil {
		t.Fatalf("RunBackup() error = %v, report failures must not be fatal", err)
	}
	if run.ReportErr == nil {
		t.Error("ReportErr = nil, want report failure")
	}
	if !reflect.DeepEqual(run.CopiedFiles, []string{"bot.py"}) {
		t.Errorf("CopiedFiles = %v", run.CopiedFiles)
	}
	if !env.fsmgr.Exists(backupRoot + "/" + pbk.MetaFileName) {
		t.Error("metadata not written after report failure")
	}
}

func TestRunBackup_ReportCounts(t *testing.T) {
	env := newTestEnv(t)
	env.fsmgr.AddFile("/project/bot.py", []byte("x"))
	env.fsmgr.AddFile("/project/states.py", []byte("y"))

	manifest := []pbk.ManifestEntry{
		{Path: "bot.py", Category: pbk.CategoryCode},
		{Path: "states.py", Category: pbk.CategoryCode},
		{Path: "missing.py", Category: pbk.CategoryCode},
	}
	if _, err := env.svc.RunBackup(manifest, "", "v1"); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	readme := string(env.fsmgr.File(backupRoot + "/README.md").Content)
	if !strings.Contains(readme, "Скопировано файлов:** 2") {
		t.Errorf("README missing copied count:\n%s", readme)
	}
	if !strings.Contains(readme, "Пропущено файлов:** 1") {
		t.Errorf("README missing skipped count:\n%s", readme)
	}
}

// End-to-end on the real filesystem: a.txt exists, missing.txt does not,
// db.sqlite is copied under its timestamped name.
func TestRunBackup_EndToEnd(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("alpha"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "db.sqlite"), []byte("database"), 0644); err != nil {
		t.Fatal(err)
	}

	svc := pbk.NewPBKService(pbk.Options{
		ProjectName: "demo",
		SourceDir:   src,
		BackupDir:   filepath.Join(src, "backup"),
		SnapshotDir: filepath.Join(src, "backup", "database"),
	}, nil, fs.NewOSFilesystemManager(), nil, nil, nil, pbk.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())

	manifest := []pbk.ManifestEntry{
		{Path: "a.txt", Category: pbk.CategoryCode},
		{Path: "missing.txt", Category: pbk.CategoryDocs},
	}
	run, err := svc.RunBackup(manifest, "db.sqlite", "test")
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	root := filepath.Join(src, "backup", "full_backup_"+ts)
	if run.Root != root {
		t.Errorf("Root = %q, want %q", run.Root, root)
	}
	if !reflect.DeepEqual(run.CopiedFiles, []string{"a.txt", "db.sqlite"}) {
		t.Errorf("CopiedFiles = %v", run.CopiedFiles)
	}
	if !reflect.DeepEqual(run.SkippedFiles, []string{"missing.txt"}) {
		t.Errorf("SkippedFiles = %v", run.SkippedFiles)
	}

	got, err := os.ReadFile(filepath.Join(root, "code", "a.txt"))
	if err != nil || string(got) != "alpha" {
		t.Errorf("code/a.txt = %q, %v", got, err)
	}
	got, err = os.ReadFile(filepath.Join(root, "database", "db_"+ts+".db"))
	if err != nil || string(got) != "database" {
		t.Errorf("database copy = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(root, "docs", "missing.txt")); !os.IsNotExist(err) {
		t.Error("missing.txt should not exist in docs/")
	}

	readme, err := os.ReadFile(filepath.Join(root, "README.md"))
	if err != nil {
		t.Fatalf("README.md not written: %v", err)
	}
	for _, want := range []string{
		"Скопировано файлов:** 2",
		"Пропущено файлов:** 1",
		"\n- a.txt\n- db.sqlite\n",
		"\n- missing.txt (файл не найден)\n",
	} {
		if !strings.Contains(string(readme), want) {
			t.Errorf("README.md missing %q", want)
		}
	}

	// Only the README and other report files are added after the size is taken.
	if run.TotalSizeBytes != int64(len("alpha")+len("database")) {
		t.Errorf("TotalSizeBytes = %d", run.TotalSizeBytes)
	}
}
