package registry

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

// ValidateNodeConfig checks a node's config bag against the JSON schema
// declared by its handler factory. Nodes of unregistered types pass
// validation so experimental types can still be saved and submitted.
func (r *Registry) ValidateNodeConfig(node *models.Node) error {
	factory, ok := r.handlerFactories[string(node.Type)]
	if !ok {
		return nil
	}

	schema := factory.Schema()
	if len(schema) == 0 {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for node %s: %w", node.ID, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid config for node %s: %s", node.ID, errs[0].String())
		}

		return fmt.Errorf("invalid config for node %s", node.ID)
	}

	return nil
}
