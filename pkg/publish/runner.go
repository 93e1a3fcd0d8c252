package publish

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/shotpipe/shotpipe/pkg/observability"
)

// Plugin is the lifecycle contract the runner drives for each accepted item.
// Concrete plugins live in pkg/plugins; the runner only depends on this
// interface.
type Plugin interface {
	Name() string
	ItemFilters() []string
	SettingsSchema() map[string]SettingSpec
	Accept(ctx context.Context, log *observability.Logger, settings Settings, item *Item) (*Acceptance, error)
	Validate(ctx context.Context, log *observability.Logger, settings Settings, item *Item) (bool, error)
	Publish(ctx context.Context, log *observability.Logger, settings Settings, item *Item) error
	Finalize(ctx context.Context, log *observability.Logger, settings Settings, item *Item) error
}

// Task is one (plugin, item) pairing produced by the accept pass.
type Task struct {
	Plugin   Plugin
	Item     *Item
	Settings Settings
	Enabled  bool
	Required bool
}

// TaskResult records the outcome of a task's publish.
type TaskResult struct {
	Plugin   string
	ItemID   string
	ItemName string
	Err      error
	Duration time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds the number of item subtrees processed concurrently.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSettingsOverrides supplies host-side setting values per plugin name.
func WithSettingsOverrides(overrides map[string]map[string]interface{}) RunnerOption {
	return func(r *Runner) {
		r.overrides = overrides
	}
}

// WithMetrics wires publish metrics into the runner.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// Runner executes the publish lifecycle over an item tree. Each accepted
// (plugin, item) pair becomes a task; tasks run accept → validate → publish
// in order, and finalize only after every publish in the run has completed.
// Independent root items are processed in parallel; within a subtree items
// run parent before child so property write-backs are visible to
// descendants.
type Runner struct {
	plugins   []Plugin
	log       *observability.Logger
	workers   int
	overrides map[string]map[string]interface{}
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// NewRunner creates a runner over the given plugins.
func NewRunner(plugins []Plugin, log *observability.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		plugins: plugins,
		log:     log,
		workers: 4,
		tracer:  otel.Tracer("shotpipe/publish"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunReport summarizes a completed run. Accepted counts the tasks the
// accept pass produced; Skipped counts filter-matched pairings dropped at
// accept or validate.
type RunReport struct {
	Accepted  int
	Skipped   int
	Published int
	Failed    int
	Results   []TaskResult
}

// subtreeOutcome is what one root item's subtree contributes to the report.
type subtreeOutcome struct {
	accepted int
	skipped  int
	results  []TaskResult
}

// Run processes the given root items and their subtrees.
func (r *Runner) Run(ctx context.Context, roots []*Item) (*RunReport, error) {
	ctx, span := r.tracer.Start(ctx, "publish.run",
		trace.WithAttributes(attribute.Int("items", len(roots))))
	defer span.End()

	report := &RunReport{}
	outcomes := make([]subtreeOutcome, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for idx, root := range roots {
		g.Go(func() error {
			out, err := r.runSubtree(gctx, root)
			outcomes[idx] = out
			return err
		})
	}
	err := g.Wait()

	for _, out := range outcomes {
		report.Accepted += out.accepted
		report.Skipped += out.skipped
		for _, tr := range out.results {
			report.Results = append(report.Results, tr)
			if tr.Err != nil {
				report.Failed++
			} else {
				report.Published++
			}
		}
	}
	return report, err
}

// runSubtree drives the full lifecycle over one root item and its
// descendants, sequentially in tree order.
func (r *Runner) runSubtree(ctx context.Context, root *Item) (subtreeOutcome, error) {
	items := flatten(root)

	tasks, rejected, err := r.acceptPass(ctx, items)
	if err != nil {
		return subtreeOutcome{}, err
	}

	valid, invalid, err := r.validatePass(ctx, tasks)
	if err != nil {
		return subtreeOutcome{}, err
	}

	results := r.publishPass(ctx, valid)

	// Finalize is a post-pass: it runs once all publishes of the subtree
	// completed, and only for tasks whose publish succeeded.
	r.finalizePass(ctx, valid, results)

	return subtreeOutcome{
		accepted: len(tasks),
		skipped:  rejected + invalid,
		results:  results,
	}, nil
}

func (r *Runner) acceptPass(ctx context.Context, items []*Item) ([]*Task, int, error) {
	var tasks []*Task
	rejected := 0
	for _, item := range items {
		for _, plugin := range r.plugins {
			if !MatchesFilters(plugin.ItemFilters(), item.Type) {
				continue
			}
			settings, err := ResolveSettings(plugin.SettingsSchema(), r.overrides[plugin.Name()])
			if err != nil {
				return nil, 0, fmt.Errorf("resolving settings for %s: %w", plugin.Name(), err)
			}
			acceptance, err := plugin.Accept(ctx, r.log, settings, item)
			if err != nil {
				return nil, 0, fmt.Errorf("accept failed for %s on %s: %w", plugin.Name(), item.Name, err)
			}
			if acceptance == nil || !acceptance.Accepted {
				r.log.WithField("plugin", plugin.Name()).
					WithField("item", item.Name).
					Debug("item not accepted")
				rejected++
				continue
			}
			tasks = append(tasks, &Task{
				Plugin:   plugin,
				Item:     item,
				Settings: settings,
				Enabled:  acceptance.Enabled,
				Required: acceptance.Required,
			})
		}
	}
	return tasks, rejected, nil
}

func (r *Runner) validatePass(ctx context.Context, tasks []*Task) ([]*Task, int, error) {
	var valid []*Task
	invalid := 0
	for _, task := range tasks {
		if !task.Enabled && !task.Required {
			invalid++
			continue
		}
		ok, err := task.Plugin.Validate(ctx, r.log, task.Settings, task.Item)
		if err != nil {
			return nil, 0, fmt.Errorf("validate failed for %s on %s: %w", task.Plugin.Name(), task.Item.Name, err)
		}
		if !ok {
			r.log.WithField("plugin", task.Plugin.Name()).
				WithField("item", task.Item.Name).
				Warn("validation rejected item")
			invalid++
			continue
		}
		valid = append(valid, task)
	}
	return valid, invalid, nil
}

func (r *Runner) publishPass(ctx context.Context, tasks []*Task) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	for _, task := range tasks {
		start := time.Now()
		pctx, span := r.tracer.Start(ctx, "publish.task",
			trace.WithAttributes(
				attribute.String("plugin", task.Plugin.Name()),
				attribute.String("item.type", task.Item.Type),
			))
		log := observability.UpdateLoggerWithTraceContext(pctx, r.log)
		err := task.Plugin.Publish(pctx, log, task.Settings, task.Item)
		span.End()

		elapsed := time.Since(start)
		if r.metrics != nil {
			r.metrics.ObservePublish(task.Plugin.Name(), elapsed, err)
		}
		if err != nil {
			log.WithError(err).
				WithField("plugin", task.Plugin.Name()).
				WithField("item", task.Item.Name).
				Error("publish failed")
		}
		results = append(results, TaskResult{
			Plugin:   task.Plugin.Name(),
			ItemID:   task.Item.ID,
			ItemName: task.Item.Name,
			Err:      err,
			Duration: elapsed,
		})
	}
	return results
}

func (r *Runner) finalizePass(ctx context.Context, tasks []*Task, results []TaskResult) {
	for i, task := range tasks {
		if results[i].Err != nil {
			continue
		}
		if err := task.Plugin.Finalize(ctx, r.log, task.Settings, task.Item); err != nil {
			r.log.WithError(err).
				WithField("plugin", task.Plugin.Name()).
				WithField("item", task.Item.Name).
				Error("finalize failed")
			results[i].Err = fmt.Errorf("finalize: %w", err)
		}
	}
}

// flatten returns the subtree rooted at item in depth-first order, parent
// before child.
func flatten(root *Item) []*Item {
	items := []*Item{root}
	for _, child := range root.Children() {
		items = append(items, flatten(child)...)
	}
	return items
}
