package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// DryRunDeployer records deployments instead of updating the service.
type DryRunDeployer struct {
	Logger *slog.Logger

	mu       sync.Mutex
	requests []DeployRequest
}

// Deploy implements Deployer.
func (d *DryRunDeployer) Deploy(ctx context.Context, req DeployRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	if d.Logger != nil {
		d.Logger.Info("dry-run deploy",
			"execution", req.ExecutionID,
			"container", req.Image.Name,
			"image", req.Image.ImageURI)
	}
	return nil
}

// Requests returns the recorded deployments.
func (d *DryRunDeployer) Requests() []DeployRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeployRequest(nil), d.requests...)
}
