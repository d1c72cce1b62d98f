// Package cfkv backs a routing table with Amazon CloudFront KeyValueStore.
//
// The KeyValueStore data plane is ETag-conditioned: every UpdateKeys call
// carries the ETag of the revision it was computed from and fails on
// mismatch. That maps directly onto the routetable Provider contract, so
// concurrent deploys to one router resolve by re-read and retry instead of
// last-writer-wins clobbering.
package cfkv

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore/types"
	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft/routetable"
)

// Per-item and per-store bounds imposed by the service.
const (
	maxValueBytes = 1024
	maxTotalBytes = 5 << 20
)

// Client is the subset of the KeyValueStore data-plane API the provider uses.
type Client interface {
	GetKey(ctx context.Context, params *cloudfrontkeyvaluestore.GetKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.GetKeyOutput, error)
	DescribeKeyValueStore(ctx context.Context, params *cloudfrontkeyvaluestore.DescribeKeyValueStoreInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput, error)
	UpdateKeys(ctx context.Context, params *cloudfrontkeyvaluestore.UpdateKeysInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.UpdateKeysOutput, error)
}

// Provider implements routetable.Provider against one KeyValueStore.
type Provider struct {
	client Client
	arn    string
	log    *zap.Logger
}

type Option func(*Provider)

func WithLogger(log *zap.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

func New(client Client, kvsARN string, opts ...Option) *Provider {
	p := &Provider{
		client: client,
		arn:    kvsARN,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ routetable.Provider = (*Provider)(nil)

func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	out, err := p.client.GetKey(ctx, &cloudfrontkeyvaluestore.GetKeyInput{
		KvsARN: aws.String(p.arn),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", routetable.ErrNotFound
		}
		return "", err
	}
	return aws.ToString(out.Value), nil
}

func (p *Provider) Limits() routetable.Limits {
	return routetable.Limits{
		MaxValueBytes: maxValueBytes,
		MaxTotalBytes: maxTotalBytes,
	}
}

func (p *Provider) Version(ctx context.Context) (string, error) {
	out, err := p.client.DescribeKeyValueStore(ctx, &cloudfrontkeyvaluestore.DescribeKeyValueStoreInput{
		KvsARN: aws.String(p.arn),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

func (p *Provider) Apply(ctx context.Context, version string, puts map[string]string, deletes []string) error {
	input := &cloudfrontkeyvaluestore.UpdateKeysInput{
		KvsARN:  aws.String(p.arn),
		IfMatch: aws.String(version),
	}
	for key, value := range puts {
		input.Puts = append(input.Puts, types.PutKeyRequestListItem{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
	for _, key := range deletes {
		input.Deletes = append(input.Deletes, types.DeleteKeyRequestListItem{
			Key: aws.String(key),
		})
	}

	_, err := p.client.UpdateKeys(ctx, input)
	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			p.log.Debug("key-value store write conflict, retrying from fresh read",
				zap.String("kvs_arn", p.arn))
			return routetable.ErrVersionConflict
		}
		return err
	}

	p.log.Debug("key-value store updated",
		zap.String("kvs_arn", p.arn),
		zap.Int("puts", len(puts)),
		zap.Int("deletes", len(deletes)))
	return nil
}
