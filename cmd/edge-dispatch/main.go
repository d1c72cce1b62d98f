// Command edge-dispatch is the Lambda@Edge origin-request handler running
// the routing table dispatch engine.
//
// Edge functions cannot read environment variables, so the routing table
// name is linked into the binary at bundle time (-X main.routerTable=...).
// The EDGECRAFT_* variables below still work for local invocation.
package main

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft/dispatch"
	"github.com/edgecraft/edgecraft/routetable/cfkv"
)

// routerTable is set by the linker during asset bundling.
var routerTable string

type config struct {
	TableARN  string `env:"EDGECRAFT_TABLE_ARN"`
	TableName string `env:"EDGECRAFT_TABLE"`
}

var (
	initOnce   sync.Once
	dispatcher *dispatch.Dispatcher
	initErr    error
	log        = zap.NewNop()
)

func main() {
	if l, err := zap.NewProduction(); err == nil {
		log = l
	}
	lambda.Start(handle)
}

// setup resolves the key-value store and builds the dispatcher once per
// container. Resolution failures are remembered, not retried: the handler
// passes requests through untouched until the next cold start.
func setup(ctx context.Context) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		initErr = err
		return
	}
	if cfg.TableName == "" {
		cfg.TableName = routerTable
	}

	// CloudFront control and KeyValueStore data planes are both served out
	// of us-east-1 regardless of where the replica executes.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		initErr = err
		return
	}

	arn := cfg.TableARN
	if arn == "" {
		if cfg.TableName == "" {
			initErr = errNoTable
			return
		}
		out, err := cloudfront.NewFromConfig(awsCfg).DescribeKeyValueStore(ctx, &cloudfront.DescribeKeyValueStoreInput{
			Name: aws.String(cfg.TableName),
		})
		if err != nil {
			initErr = err
			return
		}
		arn = aws.ToString(out.KeyValueStore.ARN)
	}

	provider := cfkv.New(cloudfrontkeyvaluestore.NewFromConfig(awsCfg), arn, cfkv.WithLogger(log))
	dispatcher = dispatch.New(provider, dispatch.WithLogger(log))
	log.Info("dispatcher ready", zap.String("table", cfg.TableName), zap.String("arn", arn))
}

func handle(ctx context.Context, event cfEvent) (*cfRequest, error) {
	if len(event.Records) == 0 {
		return nil, errNoRecord
	}
	cfReq := event.Records[0].CF.Request

	initOnce.Do(func() { setup(ctx) })
	if initErr != nil {
		// Fail open: the request proceeds to the default origin.
		log.Error("dispatcher unavailable, passing request through", zap.Error(initErr))
		return cfReq, nil
	}

	req := fromEvent(cfReq)
	dispatcher.Dispatch(ctx, req)
	applyToEvent(req, cfReq)
	return cfReq, nil
}

// fromEvent converts the CloudFront event request into the dispatch view.
func fromEvent(cfReq *cfRequest) *dispatch.Request {
	req := &dispatch.Request{
		Method:      cfReq.Method,
		URI:         cfReq.URI,
		QueryString: cfReq.QueryString,
		Headers:     map[string]string{},
		Cookies:     map[string]string{},
	}
	for name, values := range cfReq.Headers {
		if len(values) > 0 {
			req.Headers[strings.ToLower(name)] = values[0].Value
		}
	}
	for _, pair := range strings.Split(req.Headers["cookie"], ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && name != "" {
			req.Cookies[name] = value
		}
	}
	return req
}

// applyToEvent writes the dispatch outcome back onto the event request.
func applyToEvent(req *dispatch.Request, cfReq *cfRequest) {
	cfReq.URI = req.URI

	delete(req.Headers, "cookie")
	if len(req.Cookies) > 0 {
		pairs := make([]string, 0, len(req.Cookies))
		for name, value := range req.Cookies {
			pairs = append(pairs, name+"="+value)
		}
		req.Headers["cookie"] = strings.Join(pairs, "; ")
	}

	if req.Origin != nil {
		// Forwarding to an override origin requires the host header to name
		// that origin.
		req.Headers["host"] = req.Origin.Domain
		cfReq.Origin = newEventOrigin(req.Origin)
	}

	cfReq.Headers = map[string][]cfHeader{}
	for name, value := range req.Headers {
		cfReq.Headers[name] = []cfHeader{{Key: name, Value: value}}
	}
}

func newEventOrigin(origin *dispatch.Origin) *cfOrigin {
	if origin.Type == dispatch.OriginS3 {
		return &cfOrigin{
			S3: &cfS3Origin{
				DomainName:    origin.Domain,
				AuthMethod:    "none",
				Path:          "",
				CustomHeaders: map[string][]cfHeader{},
			},
		}
	}

	readTimeout := 30
	if origin.Overrides.ReadTimeout > 0 {
		readTimeout = origin.Overrides.ReadTimeout
	}
	keepalive := 5
	if origin.Overrides.KeepAliveTimeout > 0 {
		keepalive = origin.Overrides.KeepAliveTimeout
	}
	return &cfOrigin{
		Custom: &cfCustomOrigin{
			DomainName:       origin.Domain,
			Port:             443,
			Protocol:         "https",
			Path:             "",
			SSLProtocols:     []string{"TLSv1.2"},
			ReadTimeout:      readTimeout,
			KeepaliveTimeout: keepalive,
			CustomHeaders:    map[string][]cfHeader{},
		},
	}
}
