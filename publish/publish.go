// Package publish applies a synthesized routing table plan to the live
// key-value store and invalidates the CDN when site content changed.
//
// Construct code runs at synth time, before any resource exists, so it
// cannot write table entries itself. Instead the router emits a plan file
// during synth; after the deploy completes, this package replays the plan
// against the provisioned KeyValueStore.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft"
	"github.com/edgecraft/edgecraft/routetable"
	"github.com/edgecraft/edgecraft/routetable/cfkv"
)

// deployHashKey stores the content hash of the last published deploy. A
// changed hash is what triggers an invalidation.
const deployHashKey = "hash"

// Entry is one route registration: its descriptor line plus the metadata
// blob for its namespace.
type Entry struct {
	Descriptor routetable.RouteDescriptor `json:"descriptor"`
	Metadata   *routetable.Metadata       `json:"metadata"`
}

// Plan is the file a router writes at synth time.
type Plan struct {
	// Table is the KeyValueStore name. Names are deterministic, so the plan
	// survives across synth and deploy without carrying unresolved tokens.
	Table   string  `json:"table"`
	Entries []Entry `json:"entries"`

	// InvalidationHash summarizes the mutable site content of this deploy.
	// Empty means no site participates and no invalidation is ever needed.
	InvalidationHash  string   `json:"invalidationHash,omitempty"`
	InvalidationPaths []string `json:"invalidationPaths,omitempty"`
}

// WritePlan serializes the plan to path.
func WritePlan(plan *Plan, path string) error {
	blob, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: marshal plan: %w", err)
	}
	return os.WriteFile(path, append(blob, '\n'), 0o644)
}

// LoadPlan reads a plan written by WritePlan.
func LoadPlan(path string) (*Plan, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan Plan
	if err := json.Unmarshal(blob, &plan); err != nil {
		return nil, fmt.Errorf("publish: parse plan %s: %w", path, err)
	}
	if plan.Table == "" {
		return nil, &edgecraft.ValidationError{Field: "table", Message: "plan has no key-value store name"}
	}
	return &plan, nil
}

// ControlPlane is the subset of the CloudFront control-plane API the
// publisher uses.
type ControlPlane interface {
	DescribeKeyValueStore(ctx context.Context, params *cloudfront.DescribeKeyValueStoreInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DescribeKeyValueStoreOutput, error)
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Publisher replays plans against live stores.
type Publisher struct {
	control ControlPlane
	kv      cfkv.Client
	ids     edgecraft.IDGenerator
	log     *zap.Logger
}

type Option func(*Publisher)

func WithLogger(log *zap.Logger) Option {
	return func(p *Publisher) {
		if log != nil {
			p.log = log
		}
	}
}

func WithIDGenerator(ids edgecraft.IDGenerator) Option {
	return func(p *Publisher) {
		p.ids = ids
	}
}

func New(control ControlPlane, kv cfkv.Client, opts ...Option) *Publisher {
	p := &Publisher{
		control: control,
		kv:      kv,
		ids:     edgecraft.ULIDGenerator{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish registers every plan entry and, when the content hash moved,
// invalidates the distribution. Metadata is written before the route line
// for each entry, so a dispatcher racing the publish never sees a listed
// route without its blob.
func (p *Publisher) Publish(ctx context.Context, plan *Plan, distributionID string) error {
	arn, err := p.resolveTableARN(ctx, plan.Table)
	if err != nil {
		return err
	}
	store := routetable.NewStore(cfkv.New(p.kv, arn, cfkv.WithLogger(p.log)))

	for _, entry := range plan.Entries {
		if err := store.Register(ctx, entry.Descriptor, entry.Metadata); err != nil {
			return fmt.Errorf("publish: register %s: %w", entry.Descriptor.Namespace, err)
		}
		p.log.Info("route published",
			zap.String("namespace", entry.Descriptor.Namespace),
			zap.String("kind", string(entry.Descriptor.Kind)),
			zap.String("host", entry.Descriptor.Host),
			zap.String("path", entry.Descriptor.Path))
	}

	if plan.InvalidationHash == "" {
		return nil
	}
	return p.invalidateIfChanged(ctx, store, plan, distributionID)
}

func (p *Publisher) resolveTableARN(ctx context.Context, name string) (string, error) {
	out, err := p.control.DescribeKeyValueStore(ctx, &cloudfront.DescribeKeyValueStoreInput{
		Name: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("publish: resolve key-value store %q: %w", name, err)
	}
	return aws.ToString(out.KeyValueStore.ARN), nil
}

func (p *Publisher) invalidateIfChanged(ctx context.Context, store *routetable.Store, plan *Plan, distributionID string) error {
	previous, err := store.Read(ctx, "", deployHashKey)
	if err != nil && !errors.Is(err, routetable.ErrNotFound) {
		return fmt.Errorf("publish: read deploy hash: %w", err)
	}
	if previous == plan.InvalidationHash {
		p.log.Info("site content unchanged, skipping invalidation",
			zap.String("hash", plan.InvalidationHash))
		return nil
	}

	if distributionID == "" {
		return &edgecraft.ValidationError{Field: "distribution", Message: "distribution id is required to invalidate changed site content"}
	}

	paths := plan.InvalidationPaths
	if len(paths) == 0 {
		paths = []string{"/*"}
	}
	items := make([]string, len(paths))
	copy(items, paths)

	reference := p.ids.NewID()
	_, err = p.control.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(reference),
			Paths: &cftypes.Paths{
				Items:    items,
				Quantity: aws.Int32(int32(len(items))),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish: invalidate %s: %w", distributionID, err)
	}
	p.log.Info("invalidation created",
		zap.String("distribution", distributionID),
		zap.Strings("paths", items),
		zap.String("caller_reference", reference))

	return store.WriteValue(ctx, "", deployHashKey, plan.InvalidationHash)
}
