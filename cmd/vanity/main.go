// Command vanity mirrors commit authorship from configured source
// repositories into a single target repository as empty, idempotent
// commits, so activity recorded in repositories the user does not control
// shows up in a repository they do. It also carries a history-rewrite mode
// that regenerates already-mirrored commit messages in place.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"

	"github.com/teamdman/vanity/config"
	"github.com/teamdman/vanity/rewrite"
	"github.com/teamdman/vanity/scan"
	"github.com/teamdman/vanity/syncer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()

		return errors.New("missing command")
	}

	switch args[0] {
	case "read-repo":
		return runReadRepo(args[1:])
	case "this-repo":
		return runThisRepo(args[1:])
	case "sync":
		return runSync(args[1:])
	case "rewrite-history":
		return runRewriteHistory(args[1:])
	case "help", "-h", "--help":
		usage()

		return nil
	default:
		usage()

		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: vanity <command> [flags]

commands:
  read-repo add <path>     add a source repository
  read-repo list           list source repositories
  this-repo set <path>     set the target repository
  this-repo show           show the target repository
  sync                     mirror pending source commits into the target
  rewrite-history          regenerate mirror-commit messages in a range
`)
}

func runReadRepo(args []string) error {
	if len(args) == 0 {
		return errors.New("read-repo: expected add or list")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "add":
		if len(args) != 2 {
			return errors.New("read-repo add: expected exactly one path")
		}

		canonical, err := cfg.AddReadRepo(args[1])
		if err != nil {
			return err
		}

		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Println(canonical)

		return nil
	case "list":
		for _, repo := range cfg.ReadRepos {
			fmt.Println(repo)
		}

		return nil
	default:
		return fmt.Errorf("read-repo: unknown subcommand %q", args[0])
	}
}

func runThisRepo(args []string) error {
	if len(args) == 0 {
		return errors.New("this-repo: expected set or show")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "set":
		if len(args) != 2 {
			return errors.New("this-repo set: expected exactly one path")
		}

		canonical, err := cfg.SetThisRepo(args[1])
		if err != nil {
			return err
		}

		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Println(canonical)

		return nil
	case "show":
		if cfg.ThisRepo == "" {
			return errors.New(
				"this-repo is not configured, run: this-repo set <path>",
			)
		}

		fmt.Println(cfg.ThisRepo)

		return nil
	default:
		return fmt.Errorf("this-repo: unknown subcommand %q", args[0])
	}
}

//nolint:funlen // CLI flag setup is inherently long
func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)

	dryRun := fs.Bool(
		"dry-run", false,
		"Compute pending commits without creating any",
	)
	limit := fs.Int(
		"limit", 0,
		"Create at most N new mirror commits (0 = no cap)",
	)
	allowNonVanity := fs.Bool(
		"allow-non-vanity-target", false,
		"Bypass the target remote safety check",
	)
	authorName := fs.String(
		"author-name", "",
		"Only mirror source commits by this author name",
	)
	authorEmail := fs.String(
		"author-email", "",
		"Only mirror source commits by this author email",
	)
	vanityName := fs.String(
		"vanity-author-name", "",
		"Author name for mirror commits (default: target repo config)",
	)
	vanityEmail := fs.String(
		"vanity-author-email", "",
		"Author email for mirror commits (default: target repo config)",
	)
	parallelism := fs.Int(
		"parallelism", scan.DefaultParallelism,
		"Number of concurrent source repository scans",
	)
	asJSON := fs.Bool(
		"json", false,
		"Print the run summary as JSON",
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	summary, err := syncer.Run(context.Background(), syncer.Config{
		TargetPath:  cfg.ThisRepo,
		SourcePaths: cfg.ReadRepos,
		Author: scan.AuthorFilter{
			Name:  *authorName,
			Email: *authorEmail,
		},
		VanityName:           *vanityName,
		VanityEmail:          *vanityEmail,
		DryRun:               *dryRun,
		Limit:                *limit,
		AllowNonVanityTarget: *allowNonVanity,
		ScanParallelism:      *parallelism,
	})
	if summary != nil {
		if printErr := printSyncSummary(summary, *asJSON); printErr != nil {
			return printErr
		}
	}

	return err
}

func printSyncSummary(summary *syncer.Summary, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}

		fmt.Println(string(data))

		return nil
	}

	if summary.DryRun {
		for _, p := range summary.Pending {
			fmt.Printf("pending %s %s\n", p.CommitID, p.RepoHint)
		}
	}

	mode := "APPLY"
	if summary.DryRun {
		mode = "DRY RUN"
	}

	fmt.Printf(
		"[%s] source_commits=%d mirrored_markers=%d newly_created=%d\n",
		mode,
		summary.SourceCommits,
		summary.MirroredMarkers,
		summary.Created,
	)

	return nil
}

func runRewriteHistory(args []string) error {
	fs := flag.NewFlagSet("rewrite-history", flag.ContinueOnError)

	rangeExpr := fs.String(
		"rewrite-range", "",
		"Commit range to rewrite, as base..tip",
	)
	allowNonVanity := fs.Bool(
		"allow-non-vanity-target", false,
		"Bypass the target remote safety check",
	)
	asJSON := fs.Bool(
		"json", false,
		"Print the run summary as JSON",
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *rangeExpr == "" {
		return errors.New("rewrite-history: --rewrite-range is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.ThisRepo == "" {
		return errors.New(
			"this-repo is not configured, run: this-repo set <path>",
		)
	}

	summary, err := rewrite.Run(context.Background(), rewrite.Config{
		TargetPath:           cfg.ThisRepo,
		Range:                *rangeExpr,
		AllowNonVanityTarget: *allowNonVanity,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}

		fmt.Println(string(data))

		return nil
	}

	fmt.Printf(
		"rewritten=%d old_tip=%s new_tip=%s\n",
		summary.Rewritten, summary.OldTip, summary.NewTip,
	)

	return nil
}
