// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"

	conditionhandler "github.com/KlikkAI/reporunner-sub008/pkg/handlers/condition"
	"github.com/KlikkAI/reporunner-sub008/pkg/handlers/delay"
	"github.com/KlikkAI/reporunner-sub008/pkg/handlers/httprequest"
	loghandler "github.com/KlikkAI/reporunner-sub008/pkg/handlers/log"
	"github.com/KlikkAI/reporunner-sub008/pkg/handlers/transform"
	triggerhandler "github.com/KlikkAI/reporunner-sub008/pkg/handlers/trigger"
	"github.com/KlikkAI/reporunner-sub008/pkg/registry"
	"github.com/KlikkAI/reporunner-sub008/pkg/triggers/queue"
	"github.com/KlikkAI/reporunner-sub008/pkg/triggers/schedule"
)

// NewRegistry builds the registry with every native handler and trigger, plus
// any Go plugins found under pluginsPath.
func NewRegistry(logger *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeHandlers(reg, logger)
	registerNativeTriggers(reg)

	if pluginsPath != "" {
		registerHandlerPlugins(reg, pluginsPath)
		registerTriggerPlugins(reg, pluginsPath)
	}

	return reg
}

func registerNativeHandlers(reg *registry.Registry, logger *slog.Logger) {
	reg.RegisterHandler(triggerhandler.NewFactory(logger))
	reg.RegisterHandler(conditionhandler.NewFactory(logger))
	reg.RegisterHandler(delay.NewFactory(logger))
	reg.RegisterHandler(transform.NewFactory(logger))
	reg.RegisterHandler(httprequest.NewFactory(logger))
	reg.RegisterHandler(loghandler.NewFactory(logger))
}

func registerNativeTriggers(reg *registry.Registry) {
	reg.RegisterTrigger(schedule.NewFactory())
	reg.RegisterTrigger(queue.NewFactory())
}

func registerHandlerPlugins(reg *registry.Registry, pluginsPath string) {
	plugins, err := reg.LoadHandlerPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range plugins {
		reg.RegisterHandler(plugin)
	}
}

func registerTriggerPlugins(reg *registry.Registry, pluginsPath string) {
	plugins, err := reg.LoadTriggerPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range plugins {
		reg.RegisterTrigger(plugin)
	}
}
