package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

type fakeHandler struct{}

func (fakeHandler) Execute(_ context.Context, _ *models.Node, _ *models.ExecutionContext, _ map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

type fakeFactory struct {
	id     string
	schema map[string]any
}

func (f *fakeFactory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return fakeHandler{}, nil
}

func (f *fakeFactory) ID() string             { return f.id }
func (f *fakeFactory) Name() string           { return f.id }
func (f *fakeFactory) Description() string    { return "fake" }
func (f *fakeFactory) Schema() map[string]any { return f.schema }

func newTestRegistry(factories ...protocol.HandlerFactory) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewRegistry(logger)

	for _, factory := range factories {
		reg.RegisterHandler(factory)
	}

	return reg
}

func TestRegistry_CreateHandler(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{id: "echo"})

	node := &models.Node{ID: "n1", Type: "echo"}
	handler, err := reg.CreateHandler(context.Background(), node)

	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestRegistry_CreateHandler_UnknownType(t *testing.T) {
	reg := newTestRegistry()

	node := &models.Node{ID: "n1", Type: "ghost"}
	_, err := reg.CreateHandler(context.Background(), node)

	require.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{id: "echo"})

	factory, ok := reg.Resolve("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", factory.ID())

	_, ok = reg.Resolve("ghost")
	assert.False(t, ok)
}

func TestRegistry_HandlerTypes(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{id: "a"}, &fakeFactory{id: "b"})

	types := reg.HandlerTypes()

	assert.ElementsMatch(t, []string{"a", "b"}, types)
}

func TestRegistry_ValidateNodeConfig(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []string{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}

	reg := newTestRegistry(&fakeFactory{id: "http_request", schema: schema})

	valid := &models.Node{ID: "n1", Type: "http_request", Config: map[string]any{"url": "https://example.com"}}
	assert.NoError(t, reg.ValidateNodeConfig(valid))

	invalid := &models.Node{ID: "n2", Type: "http_request", Config: map[string]any{}}
	err := reg.ValidateNodeConfig(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config for node n2")
}

func TestRegistry_ValidateNodeConfig_UnregisteredTypePasses(t *testing.T) {
	reg := newTestRegistry()

	node := &models.Node{ID: "n1", Type: "experimental", Config: map[string]any{"anything": true}}

	assert.NoError(t, reg.ValidateNodeConfig(node))
}

func TestRegistry_ValidateNodeConfig_EmptySchemaPasses(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{id: "free-form", schema: map[string]any{}})

	node := &models.Node{ID: "n1", Type: "free-form", Config: map[string]any{"anything": true}}

	assert.NoError(t, reg.ValidateNodeConfig(node))
}

func TestRegistry_CreateTrigger_Unknown(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.CreateTrigger("ghost", map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
