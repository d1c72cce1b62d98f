package edgecraft

import (
	"strings"

	"github.com/edgecraft/edgecraft/pkg/naming"
)

// DeployContext carries the ambient identity of one deploy invocation.
//
// It is passed explicitly to every component constructor; nothing in this
// library reads process-wide deploy state. The lifetime of a DeployContext is
// one synth/deploy run.
type DeployContext struct {
	App   string
	Stage string

	// Region is the provisioning region for regional resources. Edge
	// resources (distributions, key-value stores) are global regardless.
	Region string
}

type ContextOption func(*DeployContext)

func WithRegion(region string) ContextOption {
	return func(dc *DeployContext) {
		dc.Region = region
	}
}

// NewDeployContext creates a deploy context for the given app and stage.
//
// App and stage are normalized the same way resource names are, so two
// spellings of the same stage ("prod", "production") share resources.
func NewDeployContext(app, stage string, opts ...ContextOption) (*DeployContext, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return nil, &ValidationError{Field: "app", Message: "app name is required"}
	}
	dc := &DeployContext{
		App:   app,
		Stage: naming.NormalizeStage(stage),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(dc)
	}
	return dc, nil
}

// ResourceName returns the deterministic physical name for a component
// resource owned by this deploy.
func (dc *DeployContext) ResourceName(component string) string {
	return naming.ResourceName(dc.App, component, dc.Stage)
}

// BaseName returns the deterministic <app>-<stage> prefix.
func (dc *DeployContext) BaseName() string {
	return naming.BaseName(dc.App, dc.Stage)
}
