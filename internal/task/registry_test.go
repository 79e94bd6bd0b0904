package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopTask struct{ name string }

func (n *noopTask) Name() string           { return n.name }
func (n *noopTask) Validate(Input) bool    { return true }
func (n *noopTask) Execute(context.Context, ExecutionContext, Input) Result {
	return Success(nil)
}

func factoryFor(name string) Factory {
	return func() Descriptor { return Descriptor{Task: &noopTask{name: name}} }
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("extract", factoryFor("extract")))
	require.NoError(t, r.Register("index", factoryFor("index")))
	r.Seal()

	d, err := r.Resolve("extract")
	require.NoError(t, err)
	assert.Equal(t, "extract", d.Task.Name())
	assert.Equal(t, []string{"extract", "index"}, r.Names())
}

func TestRegistryUnknownTask(t *testing.T) {
	r := NewRegistry()
	r.Seal()

	_, err := r.Resolve("no-such-task")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("extract", factoryFor("extract")))

	err := r.Register("extract", factoryFor("extract"))
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestRegistrySealedRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	r.Seal()

	err := r.Register("late", factoryFor("late"))
	assert.ErrorIs(t, err, ErrRegistrySealed)
}
