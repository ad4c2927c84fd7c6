package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/remote/rest"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote/sandbox"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Store is the remote business-object platform the engine seeds.
type Store interface {
	Describe(ctx context.Context, entityType string) (*types.SchemaDescriptor, error)
	// Create issues one batched create and returns one result per record, in order.
	// An error wrapping types.ErrPartialCreate still comes with the full result
	// slice; records created before the failure keep their ids.
	Create(ctx context.Context, entityType string, records []types.Record) ([]types.CreateResult, error)
	ListValidationRules(ctx context.Context, entityTypes []string) ([]types.RuleRef, error)
	ReadRule(ctx context.Context, ref types.RuleRef) (*types.ValidationRule, error)
	UpdateRule(ctx context.Context, rule *types.ValidationRule) error
}

type Options struct {
	FixturesDir string
	InstanceURL string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

func New(provider string, opts Options) (Store, error) {
	switch provider {
	case "", "sandbox":
		return sandbox.Load(opts.FixturesDir)
	case "rest":
		return rest.New(rest.Config{
			InstanceURL: opts.InstanceURL,
			AccessToken: opts.AccessToken,
			APIVersion:  opts.APIVersion,
			Timeout:     opts.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported remote provider: %s", provider)
	}
}
