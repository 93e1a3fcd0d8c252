// Command shotpipe publishes the contents of a work area: collect items,
// run the publish plugins over them, and print a summary. With -watch it
// keeps running, publishing files as they settle in the drop directories.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shotpipe/shotpipe/pkg/collector"
	"github.com/shotpipe/shotpipe/pkg/config"
	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/plugins"
	"github.com/shotpipe/shotpipe/pkg/plugins/alembic"
	"github.com/shotpipe/shotpipe/pkg/publish"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

func main() {
	var (
		root          = flag.String("root", ".", "Work area directory to collect publishable files from")
		publishFolder = flag.String("publish-folder", "", "Target publish folder (publish in place when empty)")
		version       = flag.Int("publish-version", 0, "Publish version to align child publishes to (0 = derive)")
		registryRoot  = flag.String("registry-dir", filepath.Join(os.TempDir(), "shotpipe"), "Directory for the filesystem registry")
		project       = flag.String("project", "", "Project the publish belongs to")
		entity        = flag.String("entity", "", "Entity (shot or asset) the publish is scoped to")
		task          = flag.String("task", "", "Task the publish is scoped to")
		pluginDirs    = flag.String("plugin-dirs", "", "Comma-separated plugin directories (default: SHOTPIPE_PLUGIN_DIRS, then the standard paths)")
		watch         = flag.Bool("watch", false, "Watch the drop directories and publish files as they settle")
		dropDirs      = flag.String("drop-dirs", "", "Comma-separated drop directories for -watch (default: SHOTPIPE_DROP_DIRS)")
		workers       = flag.Int("workers", 0, "Number of item subtrees published concurrently (default: SHOTPIPE_WORKERS)")
		timeout       = flag.Duration("timeout", 10*time.Minute, "Overall publish run timeout")
		verbose       = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	cli := logrus.New()
	cli.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		cli.SetLevel(logrus.DebugLevel)
	}

	level := observability.InfoLevel
	if *verbose {
		level = observability.DebugLevel
	}
	log := observability.NewLogger(level, os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		cli.Fatalf("Failed to load configuration: %v", err)
	}
	if *workers == 0 {
		*workers = cfg.Pipeline.Workers
	}

	store, err := registry.NewFileSystemStore(*registryRoot)
	if err != nil {
		cli.Fatalf("Failed to initialize registry store: %v", err)
	}
	service := registry.NewService(store, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := publish.NewRunner(
		loadPlugins(ctx, cli, service, splitDirs(*pluginDirs, cfg.Pipeline.PluginDirs)),
		log,
		publish.WithWorkers(*workers),
	)

	pubCtx := &publish.Context{Project: *project, Entity: *entity, Task: *task}
	session := collector.Session{
		Root:           *root,
		Context:        pubCtx,
		PublishFolder:  *publishFolder,
		PublishVersion: *version,
	}

	if *watch {
		dirs := splitDirs(*dropDirs, cfg.Pipeline.DropDirs)
		if len(dirs) == 0 {
			cli.Fatal("-watch needs drop directories (-drop-dirs or SHOTPIPE_DROP_DIRS)")
		}
		runWatch(ctx, cli, log, runner, session, dirs, cfg.Pipeline.SettleTime)
		return
	}

	runOnce(ctx, cli, runner, session, *timeout)
}

// loadPlugins assembles the publish plugin set: the builtin alembic plugin
// plus any compatible plugins discovered in the plugin directories.
func loadPlugins(ctx context.Context, cli *logrus.Logger, service alembic.Registrar, dirs []string) []publish.Plugin {
	if len(dirs) == 0 {
		dirs = plugins.GetDefaultPluginDirectories()
	}

	loader := plugins.NewLoader(dirs, cli)
	loader.RegisterFactory("alembic", alembic.Factory(service))

	discovered, err := loader.DiscoverPlugins(ctx)
	if err != nil {
		cli.Fatalf("Plugin discovery failed: %v", err)
	}

	builtin := alembic.New(service)
	set := []publish.Plugin{builtin}
	seen := map[string]bool{builtin.Name(): true}

	for _, p := range discovered {
		pub, ok := p.(publish.Plugin)
		if !ok {
			cli.Debugf("Skipping non-publish plugin %s", p.Manifest().ID)
			continue
		}
		if seen[pub.Name()] {
			continue
		}
		seen[pub.Name()] = true
		set = append(set, pub)
		cli.Infof("Loaded plugin %s v%s", p.Manifest().Name, p.Manifest().Version)
	}
	return set
}

func runOnce(ctx context.Context, cli *logrus.Logger, runner *publish.Runner, session collector.Session, timeout time.Duration) {
	tree, err := collector.Collect(session)
	if err != nil {
		cli.Fatalf("Collection failed: %v", err)
	}
	if len(tree.Children()) == 0 {
		cli.Warnf("No publishable files under %s", session.Root)
		return
	}
	cli.Infof("Collected %d publishable item(s)", len(tree.Children()))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := runner.Run(ctx, []*publish.Item{tree})
	if err != nil {
		cli.Fatalf("Publish run failed: %v", err)
	}
	printReport(cli, report)

	if report.Failed > 0 {
		os.Exit(1)
	}
}

// runWatch publishes drop-directory files as the watcher emits them, until
// the context is cancelled.
func runWatch(ctx context.Context, cli *logrus.Logger, log *observability.Logger, runner *publish.Runner, session collector.Session, dirs []string, settle time.Duration) {
	watcher := collector.NewWatcher(dirs, session, settle, log)

	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			cli.Fatalf("Watcher failed: %v", err)
		}
	}()

	cli.Infof("Watching %s for publishable files", strings.Join(dirs, ", "))

	for item := range watcher.Items() {
		report, err := runner.Run(ctx, []*publish.Item{item})
		if err != nil {
			cli.Errorf("Publish run failed: %v", err)
			continue
		}
		printReport(cli, report)
	}
	cli.Info("Watch stopped")
}

func printReport(cli *logrus.Logger, report *publish.RunReport) {
	for _, result := range report.Results {
		if result.Err != nil {
			cli.Errorf("FAILED  %-24s %s: %v", result.Plugin, result.ItemName, result.Err)
			continue
		}
		cli.Infof("OK      %-24s %s (%s)", result.Plugin, result.ItemName, result.Duration.Round(time.Millisecond))
	}

	summary := []string{}
	if report.Published > 0 {
		summary = append(summary, pluralize(report.Published, "publish", "publishes"))
	}
	if report.Failed > 0 {
		summary = append(summary, pluralize(report.Failed, "failure", "failures"))
	}
	if report.Skipped > 0 {
		summary = append(summary, pluralize(report.Skipped, "item skipped", "items skipped"))
	}
	if len(summary) == 0 {
		summary = append(summary, "nothing to publish")
	}
	cli.Infof("Done: %s", strings.Join(summary, ", "))
}

// splitDirs merges a comma-separated flag value with the configured fallback.
func splitDirs(flagValue string, fallback []string) []string {
	if flagValue == "" {
		return fallback
	}
	var dirs []string
	for _, d := range strings.Split(flagValue, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}
