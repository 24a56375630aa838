// Package stream writes canonical articles to a partitioned Kinesis-style
// delivery log in size-bounded batches, retrying partial failures.
package stream

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"

	"newsingest/internal/config"
)

// NewKinesisClient builds a Kinesis client from the default AWS config
// chain, with region and endpoint overrides from StreamConfig. The client
// is safe for concurrent use by the writer's worker pool.
func NewKinesisClient(ctx context.Context, cfg config.StreamConfig) (*kinesis.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return kinesis.NewFromConfig(awsCfg, func(o *kinesis.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
