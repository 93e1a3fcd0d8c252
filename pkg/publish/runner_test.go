package publish

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpipe/shotpipe/pkg/observability"
)

// mockPlugin records lifecycle calls so tests can assert on ordering and
// phase behavior.
type mockPlugin struct {
	mu sync.Mutex

	name    string
	filters []string
	schema  map[string]SettingSpec

	acceptFn   func(item *Item) (*Acceptance, error)
	validateFn func(item *Item) (bool, error)
	publishFn  func(item *Item) error
	finalizeFn func(item *Item) error

	calls []string
}

func newMockPlugin(name string, filters ...string) *mockPlugin {
	return &mockPlugin{name: name, filters: filters}
}

func (m *mockPlugin) record(phase string, item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, phase+":"+item.Name)
}

func (m *mockPlugin) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockPlugin) Name() string                          { return m.name }
func (m *mockPlugin) ItemFilters() []string                 { return m.filters }
func (m *mockPlugin) SettingsSchema() map[string]SettingSpec { return m.schema }

func (m *mockPlugin) Accept(_ context.Context, _ *observability.Logger, _ Settings, item *Item) (*Acceptance, error) {
	m.record("accept", item)
	if m.acceptFn != nil {
		return m.acceptFn(item)
	}
	return &Acceptance{Accepted: true, Enabled: true}, nil
}

func (m *mockPlugin) Validate(_ context.Context, _ *observability.Logger, _ Settings, item *Item) (bool, error) {
	m.record("validate", item)
	if m.validateFn != nil {
		return m.validateFn(item)
	}
	return true, nil
}

func (m *mockPlugin) Publish(_ context.Context, _ *observability.Logger, _ Settings, item *Item) error {
	m.record("publish", item)
	if m.publishFn != nil {
		return m.publishFn(item)
	}
	return nil
}

func (m *mockPlugin) Finalize(_ context.Context, _ *observability.Logger, _ Settings, item *Item) error {
	m.record("finalize", item)
	if m.finalizeFn != nil {
		return m.finalizeFn(item)
	}
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestRunner_FullLifecycle(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "alembic", report.Results[0].Plugin)
	assert.Equal(t, "char.abc", report.Results[0].ItemName)
	assert.NoError(t, report.Results[0].Err)

	assert.Equal(t, []string{
		"accept:char.abc",
		"validate:char.abc",
		"publish:char.abc",
		"finalize:char.abc",
	}, plugin.callLog())
}

func TestRunner_FiltersUnmatchedItems(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.vdb", "smoke.vdb")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Empty(t, plugin.callLog())
}

func TestRunner_RejectedAcceptIsNotAnError(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.acceptFn = func(item *Item) (*Acceptance, error) {
		return &Acceptance{Accepted: false}, nil
	}
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Published)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"accept:char.abc"}, plugin.callLog())
}

func TestRunner_ValidateRejectSkipsPublish(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.validateFn = func(item *Item) (bool, error) { return false, nil }
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Equal(t, []string{"accept:char.abc", "validate:char.abc"}, plugin.callLog())
}

func TestRunner_FinalizeSkippedWhenPublishFails(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.publishFn = func(item *Item) error {
		if item.Name == "bad.abc" {
			return errors.New("disk full")
		}
		return nil
	}
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "good.abc")
	session.CreateItem("cache.alembic", "bad.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Failed)

	calls := plugin.callLog()
	assert.Contains(t, calls, "finalize:good.abc")
	assert.NotContains(t, calls, "finalize:bad.abc")
}

func TestRunner_FinalizeRunsAfterAllPublishes(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "a.abc")
	session.CreateItem("cache.alembic", "b.abc")

	_, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	calls := plugin.callLog()
	lastPublish, firstFinalize := -1, len(calls)
	for i, c := range calls {
		switch {
		case c == "publish:a.abc" || c == "publish:b.abc":
			if i > lastPublish {
				lastPublish = i
			}
		case (c == "finalize:a.abc" || c == "finalize:b.abc") && i < firstFinalize:
			firstFinalize = i
		}
	}
	assert.Less(t, lastPublish, firstFinalize, "finalize must not start before publishes complete")
}

func TestRunner_FinalizeErrorMarksResultFailed(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.finalizeFn = func(item *Item) error { return errors.New("unlink failed") }
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Published)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 1)
	assert.ErrorContains(t, report.Results[0].Err, "unlink failed")
}

func TestRunner_ParentProcessedBeforeChild(t *testing.T) {
	plugin := newMockPlugin("any", "maya.session", "cache.alembic")
	plugin.publishFn = func(item *Item) error {
		if item.Type == "maya.session" {
			item.SetProperty("publish_folder", "/publish/shot_010")
		}
		return nil
	}
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	cache := session.CreateItem("cache.alembic", "char.abc")

	var sawFolder string
	origPublish := plugin.publishFn
	plugin.publishFn = func(item *Item) error {
		if item == cache {
			sawFolder = item.Parent.StringProperty("publish_folder")
		}
		return origPublish(item)
	}

	_, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)
	assert.Equal(t, "/publish/shot_010", sawFolder)
}

// settingsSpy captures the resolved settings handed to Publish.
type settingsSpy struct {
	*mockPlugin
	seen *string
}

func (s *settingsSpy) Publish(ctx context.Context, log *observability.Logger, settings Settings, item *Item) error {
	*s.seen = settings.Get("Publish Type").String()
	return s.mockPlugin.Publish(ctx, log, settings, item)
}

func TestRunner_SettingsOverridesApplied(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.schema = map[string]SettingSpec{
		"Publish Type": {Type: "string", Default: "Alembic Cache"},
	}

	var seen string
	runner := NewRunner([]Plugin{&settingsSpy{mockPlugin: plugin, seen: &seen}}, testLogger(),
		WithSettingsOverrides(map[string]map[string]interface{}{
			"alembic": {"Publish Type": "Geometry Cache"},
		}))

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	_, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)
	assert.Equal(t, "Geometry Cache", seen)
}

func TestRunner_ReportCountsAcceptedAndSkipped(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.acceptFn = func(item *Item) (*Acceptance, error) {
		if item.Name == "rejected.abc" {
			return &Acceptance{Accepted: false}, nil
		}
		return &Acceptance{Accepted: true, Enabled: true}, nil
	}
	plugin.validateFn = func(item *Item) (bool, error) {
		return item.Name != "invalid.abc", nil
	}
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")
	session.CreateItem("cache.alembic", "rejected.abc")
	session.CreateItem("cache.alembic", "invalid.abc")

	report, err := runner.Run(context.Background(), []*Item{session})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted, "char and invalid pass accept")
	assert.Equal(t, 2, report.Skipped, "one accept rejection, one validate rejection")
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 0, report.Failed)
}

func TestRunner_AcceptErrorAborts(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	plugin.acceptFn = func(item *Item) (*Acceptance, error) {
		return nil, errors.New("boom")
	}
	runner := NewRunner([]Plugin{plugin}, testLogger())

	session := NewItem("maya.session", "scene.ma")
	session.CreateItem("cache.alembic", "char.abc")

	_, err := runner.Run(context.Background(), []*Item{session})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accept failed")
}

func TestRunner_MultipleRootsProcessed(t *testing.T) {
	plugin := newMockPlugin("alembic", "cache.alembic")
	runner := NewRunner([]Plugin{plugin}, testLogger(), WithWorkers(2))

	roots := make([]*Item, 3)
	for i, name := range []string{"a.abc", "b.abc", "c.abc"} {
		session := NewItem("maya.session", "scene.ma")
		session.CreateItem("cache.alembic", name)
		roots[i] = session
	}

	report, err := runner.Run(context.Background(), roots)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Published)
	assert.Len(t, report.Results, 3)
}
