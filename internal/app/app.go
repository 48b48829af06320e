package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mediarc/internal/archive"
	"mediarc/internal/config"
	"mediarc/internal/encryption"
	"mediarc/internal/exiftool"
	"mediarc/internal/fs"
	"mediarc/internal/storage"
	"mediarc/internal/thumbs"
	"mediarc/internal/vault"
)

// App wires the archive store and its collaborators together for one CLI
// invocation and exposes the operations the commands call.
type App struct {
	Config *config.Config
	Store  *archive.Store
	Logger archive.Logger

	fsm       archive.FilesystemManager
	thumbs    archive.Thumbnailer
	vault     archive.Vault
	encryptor archive.Encryptor
	clock     archive.Clock

	out     io.Writer
	logFile *os.File
}

// NewApp builds a fully wired App from cfg. operation tags every log line
// written during this invocation.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	slogger, logFile, err := newLogger(cfg.LogDir, operation)
	if err != nil {
		return nil, err
	}
	logger := &slogAdapter{l: slogger}

	fsmgr := fs.NewOSFilesystemManager()
	extractor := exiftool.NewExtractor()
	clock := &archive.RealClock{}

	thumbnailer, err := thumbs.NewThumbnailer(cfg.Thumbnails.Dir, cfg.Thumbnails.Size, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.Catalog.UploadDir, 0755); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	db, err := storage.OpenConnection(cfg.Catalog.DBPath)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	store, err := archive.NewStore(db, extractor, thumbnailer, fsmgr, logger, clock)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, err
	}

	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		fsm:       fsmgr,
		thumbs:    thumbnailer,
		vault:     v,
		encryptor: encryption.NewEncryptorFromConfig(cfg.Encryption),
		clock:     clock,
		out:       os.Stdout,
		logFile:   logFile,
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() error {
	err := a.Store.Close()
	if cerr := a.logFile.Close(); err == nil {
		err = cerr
	}
	return err
}

// Scan reconciles the given file paths against the catalog inside one batch
// scope. When paths is empty the whole upload directory is scanned instead.
// It returns the number of files reconciled.
//
// A file whose metadata carries no parseable timestamp aborts the batch: the
// catalog is left exactly as it was, and the caller gets the error.
func (a *App) Scan(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		var err error
		paths, err = a.fsm.List(a.Config.Catalog.UploadDir)
		if err != nil {
			return 0, fmt.Errorf("listing upload directory: %w", err)
		}
	}

	count := 0
	err := a.Store.Batch(ctx, func() error {
		for _, path := range paths {
			if err := a.Store.Process(ctx, path); err != nil {
				return fmt.Errorf("processing %s: %w", path, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	a.Logger.Info("scan complete", "files", count)
	return count, nil
}

// Dedup runs the interactive duplicate resolution session on stdin/stdout.
// Returns archive.ErrAborted when the user quits mid-session; deletions
// applied before the abort stay applied.
func (a *App) Dedup(ctx context.Context) error {
	prompter := NewConsolePrompter(os.Stdin, a.out)
	resolver := archive.NewResolver(a.Store, a.fsm, a.thumbs, prompter, a.Logger,
		a.Config.Catalog.UploadDir, a.out)
	return resolver.Run(ctx)
}

// UpdateTags applies one tag mutation to the named files.
func (a *App) UpdateTags(ctx context.Context, fnames, add, remove []string) error {
	return a.Store.UpdateTags(ctx, fnames, add, remove)
}

// Search returns the live records matching the query.
func (a *App) Search(ctx context.Context, query string) ([]*archive.FileRecord, error) {
	q, err := archive.CompileQuery(query)
	if err != nil {
		return nil, err
	}

	records, err := a.Store.GetAll(ctx, archive.DeletedExcluded, false)
	if err != nil {
		return nil, err
	}
	return q.Filter(records), nil
}

// List returns catalog records ordered by file time.
func (a *App) List(ctx context.Context, filter archive.DeletedFilter, ascending bool) ([]*archive.FileRecord, error) {
	return a.Store.GetAll(ctx, filter, ascending)
}

// Tags returns every tag in use, sorted.
func (a *App) Tags(ctx context.Context) ([]string, error) {
	return a.Store.GetAllTags(ctx)
}

// SetDescription sets the description for a tracked file.
func (a *App) SetDescription(ctx context.Context, fname, desc string) error {
	return a.Store.SetDescription(ctx, fname, desc)
}

// RefreshThumbnails regenerates thumbnails for the named files, or for every
// live record when fnames is empty.
func (a *App) RefreshThumbnails(ctx context.Context, fnames []string) (int, error) {
	if len(fnames) == 0 {
		records, err := a.Store.GetAll(ctx, archive.DeletedExcluded, false)
		if err != nil {
			return 0, err
		}
		for _, r := range records {
			fnames = append(fnames, r.Fname)
		}
	}

	count := 0
	err := a.Store.Batch(ctx, func() error {
		for _, fname := range fnames {
			path := filepath.Join(a.Config.Catalog.UploadDir, fname)
			if err := a.Store.RefreshThumbnail(ctx, path); err != nil {
				return fmt.Errorf("refreshing thumbnail for %s: %w", fname, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	a.Logger.Info("thumbnails refreshed", "files", count)
	return count, nil
}

// DiskUsage returns the total size in bytes of the upload directory.
func (a *App) DiskUsage() (int64, error) {
	return a.fsm.DiskUsage(a.Config.Catalog.UploadDir)
}

// Backup snapshots the catalog database into the vault, encrypting it first
// when an encryptor is configured. It returns the stored snapshot name.
func (a *App) Backup(ctx context.Context) (string, error) {
	tmp := filepath.Join(os.TempDir(), "mediarc-snapshot-"+uuid.NewString()+".db")
	if err := a.Store.BackupTo(ctx, tmp); err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	src := tmp
	name := "catalog-" + a.clock.Now().UTC().Format("20060102T150405Z") + ".db"

	if a.encryptor != nil {
		if !a.encryptor.IsConfigured() {
			return "", errors.New("encryption enabled but keys are missing; run setup first")
		}
		enc := tmp + ".age"
		if err := encryptFile(a.encryptor, tmp, enc); err != nil {
			return "", err
		}
		defer os.Remove(enc)
		src = enc
		name += ".age"
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stating snapshot: %w", err)
	}

	if err := a.vault.PutSnapshot(name, f, info.Size()); err != nil {
		return "", err
	}

	a.Logger.Info("snapshot stored", "name", name, "bytes", info.Size())
	return name, nil
}

// RestoreDB retrieves a snapshot from the vault and writes the decrypted
// database to destPath. destPath must not already exist.
func (a *App) RestoreDB(name, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("destination already exists: %s", destPath)
	}

	tmp := filepath.Join(os.TempDir(), "mediarc-restore-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating restore file: %w", err)
	}
	defer os.Remove(tmp)

	if err := a.vault.GetSnapshot(name, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing restore file: %w", err)
	}

	if filepath.Ext(name) == ".age" {
		if a.encryptor == nil || !a.encryptor.IsConfigured() {
			return errors.New("snapshot is encrypted but no encryption keys are configured")
		}
		return decryptFile(a.encryptor, tmp, destPath)
	}
	return copyFile(tmp, destPath)
}

// Snapshots lists the stored snapshot names.
func (a *App) Snapshots() ([]string, error) {
	return a.vault.ListSnapshots()
}

// SetupEncryption generates the age key pair if encryption is enabled and the
// keys do not exist yet.
func (a *App) SetupEncryption() error {
	if a.encryptor == nil {
		return errors.New("encryption is not enabled in the config")
	}
	if a.encryptor.IsConfigured() {
		return errors.New("encryption keys already exist")
	}
	return a.encryptor.Setup()
}

func encryptFile(enc archive.Encryptor, srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening plaintext: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating ciphertext: %w", err)
	}
	defer dest.Close()

	if err := enc.Encrypt(src, dest); err != nil {
		return err
	}
	return dest.Close()
}

func decryptFile(enc archive.Encryptor, srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening ciphertext: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating plaintext: %w", err)
	}
	defer dest.Close()

	if err := enc.Decrypt(src, dest); err != nil {
		return err
	}
	return dest.Close()
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return fmt.Errorf("copying %s: %w", srcPath, err)
	}
	return dest.Close()
}
