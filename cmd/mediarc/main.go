package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediarc/internal/app"
	"mediarc/internal/archive"
	"mediarc/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Scan", "Dedup").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "mediarc",
	Short: "Personal media archive catalog",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Catalog DB:     %s\n", cfg.Catalog.DBPath)
		fmt.Printf("Upload Dir:     %s\n", cfg.Catalog.UploadDir)
		fmt.Printf("Thumbnail Dir:  %s\n", cfg.Thumbnails.Dir)
		fmt.Printf("Thumbnail Size: %d\n", cfg.Thumbnails.Size)
		fmt.Printf("Vault:          %s (%s)\n", cfg.Vault.Type, cfg.Vault.Root)
		fmt.Printf("Encryption:     %t\n", cfg.Encryption.Enabled)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate snapshot encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupEncryption(); err != nil {
			return err
		}

		fmt.Printf("Keys written to %s and %s\n",
			a.Config.Encryption.RecipientPath, a.Config.Encryption.IdentityPath)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan [PATH...]",
	Short: "Reconcile files against the catalog",
	Long: "Reconcile the given files against the catalog. With no arguments the\n" +
		"whole upload directory is scanned. New files are added, changed files\n" +
		"are refreshed, and tracked files whose metadata can no longer be read\n" +
		"are soft-deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		paths := make([]string, 0, len(args))
		for _, arg := range args {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			paths = append(paths, abs)
		}

		count, err := a.Scan(cmd.Context(), paths)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Reconciled %d file(s)\n", count)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List catalog records",
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, _ := cmd.Flags().GetBool("deleted")
		reverse, _ := cmd.Flags().GetBool("reverse")

		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		filter := archive.DeletedExcluded
		if deleted {
			filter = archive.DeletedOnly
		}

		records, err := a.List(cmd.Context(), filter, reverse)
		if err != nil {
			return err
		}

		printRecords(records)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search catalog records",
	Long: "Search live records. The query is a space-separated list of tokens\n" +
		"that must all match a record's file time or tags. Prefix a token with\n" +
		"\"!\" to negate it; \"tagged\" matches any record carrying tags.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Search")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		printRecords(records)
		return nil
	},
}

// tags command
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Tags")
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.Tags(cmd.Context())
		if err != nil {
			return err
		}

		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	},
}

var tagsUpdateCmd = &cobra.Command{
	Use:   "update FILENAME...",
	Short: "Add or remove tags on files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		add, _ := cmd.Flags().GetStringSlice("add")
		remove, _ := cmd.Flags().GetStringSlice("remove")

		a, err := newApp("UpdateTags")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.UpdateTags(cmd.Context(), args, add, remove); err != nil {
			return err
		}

		fmt.Printf("Updated tags on %d file(s)\n", len(args))
		return nil
	},
}

// desc command
var descCmd = &cobra.Command{
	Use:   "desc FILENAME DESCRIPTION",
	Short: "Set a file's description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetDescription")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetDescription(cmd.Context(), args[0], args[1])
	},
}

// dedup command
var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Interactively resolve duplicate files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Dedup")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Dedup(cmd.Context())
		if errors.Is(err, archive.ErrAborted) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	},
}

// thumbs command
var thumbsCmd = &cobra.Command{
	Use:   "thumbs [FILENAME...]",
	Short: "Regenerate thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RefreshThumbnails")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.RefreshThumbnails(cmd.Context(), args)
		if err != nil {
			return err
		}

		fmt.Printf("Refreshed %d thumbnail(s)\n", count)
		return nil
	},
}

// du command
var duCmd = &cobra.Command{
	Use:   "du",
	Short: "Show upload directory disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DiskUsage")
		if err != nil {
			return err
		}
		defer a.Close()

		bytes, err := a.DiskUsage()
		if err != nil {
			return err
		}

		fmt.Printf("%d bytes (%.1f MB)\n", bytes, float64(bytes)/(1024*1024))
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the catalog database into the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Backup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Stored snapshot %s\n", name)
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored catalog snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Snapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Snapshots()
		if err != nil {
			return err
		}

		if len(names) == 0 {
			fmt.Println("No snapshots stored.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var restoreDBCmd = &cobra.Command{
	Use:   "restore-db SNAPSHOT DEST",
	Short: "Restore a catalog snapshot from the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RestoreDB")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RestoreDB(args[0], args[1]); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %s to %s\n", args[0], args[1])
		return nil
	},
}

// translate command
var translateCmd = &cobra.Command{
	Use:   "translate OLD NEW",
	Short: "Copy a legacy catalog into a fresh database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := app.Translate(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("translate failed: %w", err)
		}

		fmt.Printf("Copied %d record(s) to %s\n", count, args[1])
		return nil
	},
}

func printRecords(records []*archive.FileRecord) {
	if len(records) == 0 {
		fmt.Println("No records found.")
		return
	}

	for _, r := range records {
		tags := ""
		if len(r.Tags) > 0 {
			tags = "  [" + strings.Join(r.Tags, ", ") + "]"
		}
		fmt.Printf("%s  %s%s\n", r.FileTime(), r.Fname, tags)
	}
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// tags subcommands
	tagsCmd.AddCommand(tagsUpdateCmd)
	tagsUpdateCmd.Flags().StringSlice("add", nil, "Tags to add")
	tagsUpdateCmd.Flags().StringSlice("remove", nil, "Tags to remove")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("deleted", false, "Show soft-deleted records instead")
	lsCmd.Flags().BoolP("reverse", "r", false, "Oldest first")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(descCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(duCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(restoreDBCmd)
	rootCmd.AddCommand(translateCmd)
}
