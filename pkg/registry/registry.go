// Package registry maps node types to their handler factories.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

// ErrHandlerNotFound marks a node type with no registered handler. The
// dispatcher treats this as a degradation case, not a run failure.
var ErrHandlerNotFound = errors.New("no handler registered for node type")

type Registry struct {
	logger           *slog.Logger
	handlerFactories map[string]protocol.HandlerFactory
	triggerFactories map[string]protocol.TriggerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:           logger,
		handlerFactories: make(map[string]protocol.HandlerFactory),
		triggerFactories: make(map[string]protocol.TriggerFactory),
	}
}

func (r *Registry) RegisterHandler(factory protocol.HandlerFactory) {
	r.handlerFactories[factory.ID()] = factory
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.triggerFactories[factory.ID()] = factory
}

// Resolve returns the handler factory for a node type, if one is registered.
func (r *Registry) Resolve(nodeType string) (protocol.HandlerFactory, bool) {
	factory, ok := r.handlerFactories[nodeType]

	return factory, ok
}

// CreateHandler builds a handler instance for the node's declared type.
func (r *Registry) CreateHandler(ctx context.Context, node *models.Node) (protocol.NodeHandler, error) {
	factory, ok := r.handlerFactories[string(node.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, node.Type)
	}

	return factory.Create(ctx, node)
}

// CreateTrigger builds a trigger instance for the given trigger type.
func (r *Registry) CreateTrigger(triggerType string, config map[string]any) (protocol.Trigger, error) {
	factory, ok := r.triggerFactories[triggerType]
	if !ok {
		return nil, fmt.Errorf("trigger type %q not registered", triggerType)
	}

	return factory.Create(config, r.logger)
}

// HandlerTypes lists every registered node type.
func (r *Registry) HandlerTypes() []string {
	types := make([]string, 0, len(r.handlerFactories))
	for id := range r.handlerFactories {
		types = append(types, id)
	}

	return types
}

// LoadHandlerPlugins loads handler factories from Go plugins under
// pluginsPath/handlers, each exporting a Handler symbol.
func (r *Registry) LoadHandlerPlugins(pluginsPath string) ([]protocol.HandlerFactory, error) {
	return loadPlugin[protocol.HandlerFactory](r.logger, pluginsPath, "Handler", "handlers")
}

// LoadTriggerPlugins loads trigger factories from Go plugins under
// pluginsPath/triggers, each exporting a Trigger symbol.
func (r *Registry) LoadTriggerPlugins(pluginsPath string) ([]protocol.TriggerFactory, error) {
	return loadPlugin[protocol.TriggerFactory](r.logger, pluginsPath, "Trigger", "triggers")
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath, symbolName, subdir string) ([]T, error) {
	rootPath := pluginsPath + "/" + subdir

	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		return nil, nil
	}

	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no %s symbol: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s exports an incompatible %s symbol", p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
