package hierarchy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lineage/internal/metrics"
	"github.com/zjrosen/lineage/internal/pubsub"
)

// === Helper Functions ===

// newTestHierarchy declares Resource > {Article > Post, Comment}.
func newTestHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h := New()
	t.Cleanup(h.Close)
	declare(t, h, "Resource")
	declare(t, h, "Article", "Resource")
	declare(t, h, "Post", "Article")
	declare(t, h, "Comment", "Resource")
	return h
}

func declare(t *testing.T, h *Hierarchy, name string, parents ...string) *Model {
	t.Helper()
	m, err := h.Declare(name, parents...)
	require.NoError(t, err)
	return m
}

func descendantNames(t *testing.T, h *Hierarchy, name string) []string {
	t.Helper()
	names, err := h.DescendantNames(name)
	require.NoError(t, err)
	return names
}

// === Unit Tests: Declare ===

func TestDeclare_RegistersUnderParent(t *testing.T) {
	h := newTestHierarchy(t)

	require.Equal(t, []string{"Article", "Post", "Comment"}, descendantNames(t, h, "Resource"))
	require.Equal(t, []string{"Post"}, descendantNames(t, h, "Article"))
	require.Empty(t, descendantNames(t, h, "Post"))
}

func TestDeclare_NewModelHasEmptyRegistry(t *testing.T) {
	h := New()
	m := declare(t, h, "Resource")

	require.True(t, m.Descendants().IsEmpty())
	require.Empty(t, m.Parents())
}

func TestDeclare_RegistryIdentityIsStable(t *testing.T) {
	h := newTestHierarchy(t)
	m, ok := h.Lookup("Article")
	require.True(t, ok)

	require.Same(t, m.Descendants(), h.DescendantsOf(m))
	require.Same(t, h.DescendantsOf(m), h.DescendantsOf(m))
}

func TestDeclare_MultipleParents(t *testing.T) {
	h := New()
	declare(t, h, "Resource")
	declare(t, h, "Auditable")
	m := declare(t, h, "Invoice", "Resource", "Auditable")

	require.Equal(t, []string{"Resource", "Auditable"}, m.Parents())
	require.Equal(t, []string{"Invoice"}, descendantNames(t, h, "Resource"))
	require.Equal(t, []string{"Invoice"}, descendantNames(t, h, "Auditable"))
}

func TestDeclare_Errors(t *testing.T) {
	h := newTestHierarchy(t)

	_, err := h.Declare("  ")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = h.Declare("Article", "Resource")
	require.ErrorIs(t, err, ErrDuplicateModel)

	_, err = h.Declare("Orphan", "Missing")
	require.ErrorIs(t, err, ErrUnknownModel)
	_, ok := h.Lookup("Orphan")
	require.False(t, ok, "failed declaration leaves no model behind")
}

// === Unit Tests: Include ===

func TestInclude_SecondPathYieldsDescendantTwice(t *testing.T) {
	h := newTestHierarchy(t)

	require.NoError(t, h.Include("Post", "Resource"))

	require.Equal(t, []string{"Article", "Post", "Comment", "Post"}, descendantNames(t, h, "Resource"))
	post, _ := h.Lookup("Post")
	require.Equal(t, []string{"Article", "Resource"}, post.Parents())
}

func TestInclude_SelfInclusionIsGuarded(t *testing.T) {
	h := newTestHierarchy(t)

	require.NoError(t, h.Include("Post", "Post"))

	require.Equal(t, []string{"Post"}, descendantNames(t, h, "Post"))
	require.Equal(t, []string{"Post"}, descendantNames(t, h, "Article"), "Post is not yielded as its own descendant")
}

func TestInclude_RejectsCycle(t *testing.T) {
	h := newTestHierarchy(t)

	err := h.Include("Resource", "Post")
	require.ErrorIs(t, err, ErrCycle)
	require.Empty(t, descendantNames(t, h, "Post"))
}

func TestInclude_UnknownModels(t *testing.T) {
	h := newTestHierarchy(t)

	require.ErrorIs(t, h.Include("Missing", "Resource"), ErrUnknownModel)
	require.ErrorIs(t, h.Include("Post", "Missing"), ErrUnknownModel)
}

// === Unit Tests: Retract ===

func TestRetract_CascadesThroughEveryPath(t *testing.T) {
	h := newTestHierarchy(t)
	require.NoError(t, h.Include("Post", "Comment"))
	require.Equal(t, []string{"Article", "Post", "Comment", "Post"}, descendantNames(t, h, "Resource"))

	require.NoError(t, h.Retract("Post"))

	require.Equal(t, []string{"Article", "Comment"}, descendantNames(t, h, "Resource"))
	require.Empty(t, descendantNames(t, h, "Article"))
	require.Empty(t, descendantNames(t, h, "Comment"))
	_, ok := h.Lookup("Post")
	require.False(t, ok)
	require.Equal(t, []string{"Resource", "Article", "Comment"}, h.Names())
}

func TestRetract_ChildrenBecomeRoots(t *testing.T) {
	h := newTestHierarchy(t)

	require.NoError(t, h.Retract("Article"))

	post, ok := h.Lookup("Post")
	require.True(t, ok)
	require.Empty(t, post.Parents())
	require.Equal(t, []string{"Comment"}, descendantNames(t, h, "Resource"))

	var roots []string
	for _, r := range h.Roots() {
		roots = append(roots, r.Name())
	}
	require.Equal(t, []string{"Resource", "Post"}, roots)
}

func TestRetract_Unknown(t *testing.T) {
	h := newTestHierarchy(t)
	require.ErrorIs(t, h.Retract("Missing"), ErrUnknownModel)
}

func TestRetract_SelfIncludedModel(t *testing.T) {
	h := newTestHierarchy(t)
	require.NoError(t, h.Include("Comment", "Comment"))

	require.NoError(t, h.Retract("Comment"))

	require.Equal(t, []string{"Article", "Post"}, descendantNames(t, h, "Resource"))
}

func TestRetract_AllowsRedeclaration(t *testing.T) {
	h := newTestHierarchy(t)
	require.NoError(t, h.Retract("Post"))

	declare(t, h, "Post", "Resource")

	require.Equal(t, []string{"Article", "Comment", "Post"}, descendantNames(t, h, "Resource"))
}

// === Unit Tests: Queries ===

func TestDescendants_LiveView(t *testing.T) {
	h := New()
	declare(t, h, "A")
	declare(t, h, "B")
	require.NoError(t, h.Include("A", "B"))
	require.Equal(t, []string{"A"}, descendantNames(t, h, "B"))

	declare(t, h, "C", "A")

	require.Equal(t, []string{"A", "C"}, descendantNames(t, h, "B"))
}

func TestDirectNames(t *testing.T) {
	h := newTestHierarchy(t)

	direct, err := h.DirectNames("Resource")
	require.NoError(t, err)
	require.Equal(t, []string{"Article", "Comment"}, direct)

	_, err = h.DirectNames("Missing")
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestDescendants_Unknown(t *testing.T) {
	h := newTestHierarchy(t)
	_, err := h.Descendants("Missing")
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestLen(t *testing.T) {
	h := newTestHierarchy(t)
	require.Equal(t, 4, h.Len())
}

// === Events and metrics ===

func TestSubscribe_PublishesChanges(t *testing.T) {
	h := New()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Subscribe(ctx)

	declare(t, h, "Resource")
	declare(t, h, "Article", "Resource")
	require.NoError(t, h.Include("Article", "Article"))
	require.NoError(t, h.Retract("Article"))

	want := []struct {
		typ   pubsub.EventType
		model string
	}{
		{pubsub.CreatedEvent, "Resource"},
		{pubsub.CreatedEvent, "Article"},
		{pubsub.UpdatedEvent, "Article"},
		{pubsub.DeletedEvent, "Article"},
	}
	for _, w := range want {
		select {
		case event := <-ch:
			require.Equal(t, w.typ, event.Type)
			require.Equal(t, w.model, event.Payload.Model)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for change event")
		}
	}
}

func TestWithMetrics_CountsMutations(t *testing.T) {
	m := metrics.New()
	h := New(WithMetrics(m))
	defer h.Close()

	declare(t, h, "Resource")
	declare(t, h, "Article", "Resource")
	require.NoError(t, h.Include("Article", "Article"))
	require.NoError(t, h.Retract("Article"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.ModelsDeclared))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ModelsIncluded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ModelsRetracted))
}

// === Concurrency ===

func TestHierarchy_ConcurrentMutationAndTraversal(t *testing.T) {
	h := New()
	defer h.Close()
	declare(t, h, "Resource")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("Model%d", i)
			_, err := h.Declare(name, "Resource")
			require.NoError(t, err)
			require.NoError(t, h.Retract(name))
		}()
		go func() {
			defer wg.Done()
			_, err := h.Descendants("Resource")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Empty(t, descendantNames(t, h, "Resource"))
}

// === Extensions ===

func TestExtend_RunsOncePerKey(t *testing.T) {
	h := New()
	defer h.Close()

	calls := 0
	declareResource := func(h *Hierarchy) error {
		calls++
		_, err := h.Declare("Resource")
		return err
	}

	applied, err := h.Extend("core", declareResource)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = h.Extend("core", declareResource)
	require.NoError(t, err)
	require.False(t, applied)

	require.Equal(t, 1, calls)
	require.Equal(t, []string{"core"}, h.Extensions())
}

func TestExtend_FailureIsNotRecorded(t *testing.T) {
	h := New()
	defer h.Close()

	_, err := h.Extend("broken", func(h *Hierarchy) error {
		_, err := h.Declare("Child", "Missing")
		return err
	})
	require.ErrorIs(t, err, ErrUnknownModel)
	require.Empty(t, h.Extensions())

	applied, err := h.Extend("broken", func(*Hierarchy) error { return nil })
	require.NoError(t, err)
	require.True(t, applied)
}
