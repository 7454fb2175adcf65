// Package docker implements the sandbox.Runtime interface against the Docker
// Engine API.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/sandbox"
)

// Runtime drives Docker via the official engine client.
type Runtime struct {
	cli    *client.Client
	logger *zap.Logger
}

// NewRuntime connects to the Docker daemon using environment configuration
// (DOCKER_HOST etc.) and verifies it is reachable.
func NewRuntime(ctx context.Context, logger *zap.Logger) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: creating docker client: %v", sandbox.ErrRuntimeUnavailable, err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: pinging docker daemon: %v", sandbox.ErrRuntimeUnavailable, err)
	}

	return &Runtime{cli: cli, logger: logger}, nil
}

// EnsureNetwork creates the bridge network when missing. A concurrent create
// racing to the same name is benign.
func (r *Runtime) EnsureNetwork(ctx context.Context, name string) error {
	_, err := r.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: inspecting network: %v", sandbox.ErrRuntimeUnavailable, err)
	}

	r.logger.Info("creating sandbox network", zap.String("network", name))

	_, err = r.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil && !errdefs.IsConflict(err) {
		return fmt.Errorf("creating network: %w", err)
	}
	return nil
}

// Lookup inspects the named container. Absent containers return (nil, nil).
func (r *Runtime) Lookup(ctx context.Context, name string) (*sandbox.Instance, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: inspecting container: %v", sandbox.ErrRuntimeUnavailable, err)
	}

	status := sandbox.StatusStopped
	if info.State != nil && info.State.Running {
		status = sandbox.StatusRunning
	}

	return &sandbox.Instance{
		ID:     info.ID,
		Name:   name,
		Status: status,
	}, nil
}

// Create creates and starts a container attached to the shared network. The
// container's name doubles as its hostname on that network, which is how the
// gateway addresses it.
func (r *Runtime) Create(ctx context.Context, spec sandbox.Spec) (*sandbox.Instance, error) {
	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image: spec.Image,
			Env:   spec.Env,
		},
		&container.HostConfig{},
		&network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		},
		nil,
		spec.Name,
	)
	if err != nil {
		if errdefs.IsConflict(err) {
			return nil, fmt.Errorf("%w: %v", sandbox.ErrConflict, err)
		}
		return nil, fmt.Errorf("creating container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	r.logger.Info("started agent container",
		zap.String("name", spec.Name),
		zap.String("id", created.ID),
	)

	return &sandbox.Instance{
		ID:     created.ID,
		Name:   spec.Name,
		Status: sandbox.StatusRunning,
	}, nil
}

// Start starts a stopped container.
func (r *Runtime) Start(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting container: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

var _ sandbox.Runtime = (*Runtime)(nil)
