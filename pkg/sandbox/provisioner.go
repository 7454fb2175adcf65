// Package sandbox provisions one isolated agent instance per user.
//
// The Provisioner implements idempotent ensure semantics over a pluggable
// Runtime: look up a deterministically named instance, create it on a shared
// network when absent, restart it when stopped, and tolerate create races as
// benign. It holds no locks; concurrent callers converge on the same instance
// because names are deterministic and "already exists" is treated as success.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status describes an instance's lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Instance is a provisioned agent sandbox.
type Instance struct {
	ID     string
	Name   string
	Status Status
}

// Spec describes the instance to create.
type Spec struct {
	Name    string
	Image   string
	Network string
	Env     []string
}

// Runtime is the container runtime capability the Provisioner drives.
type Runtime interface {
	// EnsureNetwork creates the named network when missing. Races are benign.
	EnsureNetwork(ctx context.Context, name string) error

	// Lookup returns the instance by name, or nil when absent.
	Lookup(ctx context.Context, name string) (*Instance, error)

	// Create creates and starts a new instance. Returns ErrConflict when the
	// name already exists.
	Create(ctx context.Context, spec Spec) (*Instance, error)

	// Start starts a stopped instance.
	Start(ctx context.Context, id string) error
}

// Config holds provisioning settings.
type Config struct {
	// Image is the agent sandbox image.
	Image string

	// Network is the shared bridge network joining gateway and sandboxes.
	Network string

	// AgentPort is the port the agent server listens on inside the sandbox.
	AgentPort uint

	// Warmup is the grace period after creating or starting an instance
	// before it reliably accepts connections.
	Warmup time.Duration

	// Env is passed through to created instances.
	Env []string
}

// Provisioner ensures one running agent instance per user.
type Provisioner struct {
	runtime Runtime
	cfg     Config
	logger  *zap.Logger
}

// NewProvisioner creates a Provisioner over the given runtime.
func NewProvisioner(runtime Runtime, cfg Config, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		runtime: runtime,
		cfg:     cfg,
		logger:  logger,
	}
}

// InstanceName derives the deterministic instance name for a user. Characters
// outside the runtime's name alphabet are mapped to dashes so two distinct
// raw IDs can still collide; deployments are expected to hand out safe IDs.
func InstanceName(userID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, userID)

	return "agent-" + sanitized
}

// Ensure returns the address of the user's running agent instance, creating
// or restarting it as needed. Safe under concurrent calls for the same user.
func (p *Provisioner) Ensure(ctx context.Context, userID string) (string, error) {
	name := InstanceName(userID)

	if err := p.runtime.EnsureNetwork(ctx, p.cfg.Network); err != nil {
		return "", fmt.Errorf("ensuring network %q: %w", p.cfg.Network, err)
	}

	inst, err := p.runtime.Lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up instance %q: %w", name, err)
	}

	switch {
	case inst == nil:
		inst, err = p.create(ctx, name)
		if err != nil {
			return "", err
		}

	case inst.Status != StatusRunning:
		p.logger.Info("restarting stopped agent instance", zap.String("name", name))
		if err := p.runtime.Start(ctx, inst.ID); err != nil {
			return "", fmt.Errorf("starting instance %q: %w", name, err)
		}
		p.warmup()
	}

	return p.address(name), nil
}

// create creates the instance, treating a name conflict as another caller
// having won the race.
func (p *Provisioner) create(ctx context.Context, name string) (*Instance, error) {
	p.logger.Info("creating agent instance",
		zap.String("name", name),
		zap.String("image", p.cfg.Image),
	)

	inst, err := p.runtime.Create(ctx, Spec{
		Name:    name,
		Image:   p.cfg.Image,
		Network: p.cfg.Network,
		Env:     p.cfg.Env,
	})
	if err == nil {
		p.warmup()
		return inst, nil
	}

	if !isConflict(err) {
		return nil, fmt.Errorf("creating instance %q: %w", name, err)
	}

	// Lost the create race; the winner's instance serves both callers.
	p.logger.Debug("instance create raced, reusing existing", zap.String("name", name))

	inst, lookupErr := p.runtime.Lookup(ctx, name)
	if lookupErr != nil {
		return nil, fmt.Errorf("looking up instance after conflict: %w", lookupErr)
	}
	if inst == nil {
		return nil, fmt.Errorf("instance %q vanished after create conflict", name)
	}
	return inst, nil
}

func (p *Provisioner) warmup() {
	if p.cfg.Warmup > 0 {
		time.Sleep(p.cfg.Warmup)
	}
}

func (p *Provisioner) address(name string) string {
	return fmt.Sprintf("http://%s:%d", name, p.cfg.AgentPort)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict) || strings.Contains(err.Error(), "already exists")
}

// PassthroughEnv collects the environment values forwarded into sandboxes:
// provider credentials, search keys, and all WARREN_ configuration.
func PassthroughEnv() []string {
	keys := []string{
		"ANTHROPIC_API_KEY",
		"OPENAI_API_KEY",
		"TAVILY_API_KEY",
		"SERPAPI_API_KEY",
	}

	var env []string
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}

	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "WARREN_") {
			env = append(env, kv)
		}
	}

	return env
}
