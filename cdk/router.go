// Package cdk holds the deployable constructs: a content router backed by a
// CloudFront distribution plus KeyValueStore routing table, and a static
// site that registers itself on a router.
package cdk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront/experimental"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/edgecraft/edgecraft"
	"github.com/edgecraft/edgecraft/pkg/naming"
	"github.com/edgecraft/edgecraft/publish"
	"github.com/edgecraft/edgecraft/routetable"
)

// defaultHandlerDir is the dispatcher main package bundled into the edge
// function when RouterProps.HandlerDir is not set.
const defaultHandlerDir = "cmd/edge-dispatch"

// RouteTarget is one declarative route destination. Exactly one field must
// be set.
type RouteTarget struct {
	// URL forwards matched requests to an external https host.
	URL string
	// Bucket serves matched requests from an S3 bucket.
	Bucket awss3.IBucket
}

// RouterProps configure a Router.
type RouterProps struct {
	// Routes declares the route table inline, keyed by "host/path" pattern.
	// A router configured this way must not also use the imperative Route
	// methods.
	Routes map[string]RouteTarget

	// HandlerDir is the dispatcher main package directory, relative to the
	// process working directory at synth time.
	HandlerDir string
}

// Router provisions the edge-routing surface: a KeyValueStore holding the
// routing table, a Lambda@Edge dispatcher bound to the origin-request event,
// and the CloudFront distribution fronting it all. The distribution's
// default origin is a placeholder; the dispatcher rewrites the origin of
// every matched request, and unmatched requests fall through to the
// placeholder by contract.
type Router struct {
	constructs.Construct

	Table        awscloudfront.KeyValueStore
	Distribution awscloudfront.Distribution

	ctx       *edgecraft.DeployContext
	tableName string

	declarative bool
	imperative  bool
	entries     []publish.Entry
	namespaces  map[string]string
	siteHashes  []string
}

// NewRouter creates the router construct and registers any declarative
// routes from props.
func NewRouter(scope constructs.Construct, id string, ctx *edgecraft.DeployContext, props *RouterProps) (*Router, error) {
	if props == nil {
		props = &RouterProps{}
	}
	construct := constructs.NewConstruct(scope, jsii.String(id))

	r := &Router{
		Construct:  construct,
		ctx:        ctx,
		tableName:  ctx.ResourceName(id),
		namespaces: map[string]string{},
	}

	r.Table = awscloudfront.NewKeyValueStore(construct, jsii.String("Table"), &awscloudfront.KeyValueStoreProps{
		KeyValueStoreName: jsii.String(r.tableName),
	})

	handlerDir := props.HandlerDir
	if handlerDir == "" {
		handlerDir = defaultHandlerDir
	}
	dispatcher := r.newDispatcher(handlerDir)

	r.Distribution = awscloudfront.NewDistribution(construct, jsii.String("Distribution"), &awscloudfront.DistributionProps{
		Comment: jsii.String(fmt.Sprintf("%s content router", r.tableName)),
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			// Never serves traffic: the dispatcher overrides the origin of
			// every matched request, and unmatched requests are expected to
			// 502 against this sentinel rather than hit a real backend.
			Origin: awscloudfrontorigins.NewHttpOrigin(jsii.String("placeholder.edgecraft.invalid"), &awscloudfrontorigins.HttpOriginProps{
				ProtocolPolicy: awscloudfront.OriginProtocolPolicy_HTTPS_ONLY,
			}),
			AllowedMethods:       awscloudfront.AllowedMethods_ALLOW_ALL(),
			CachePolicy:          awscloudfront.CachePolicy_CACHING_DISABLED(),
			OriginRequestPolicy:  awscloudfront.OriginRequestPolicy_ALL_VIEWER(),
			ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
			EdgeLambdas: &[]*awscloudfront.EdgeLambda{
				{
					EventType:       awscloudfront.LambdaEdgeEventType_ORIGIN_REQUEST,
					FunctionVersion: dispatcher.CurrentVersion(),
				},
			},
		},
	})

	awscdk.NewCfnOutput(construct, jsii.String("DistributionDomain"), &awscdk.CfnOutputProps{
		Value: r.Distribution.DistributionDomainName(),
	})
	awscdk.NewCfnOutput(construct, jsii.String("DistributionId"), &awscdk.CfnOutputProps{
		Value: r.Distribution.DistributionId(),
	})
	awscdk.NewCfnOutput(construct, jsii.String("TableName"), &awscdk.CfnOutputProps{
		Value: jsii.String(r.tableName),
	})

	if len(props.Routes) > 0 {
		r.declarative = true
		if err := r.addDeclaredRoutes(props.Routes); err != nil {
			return nil, err
		}
	}

	annotateInfo(construct, "router %s: table %s", id, r.tableName)
	return r, nil
}

// newDispatcher builds the Lambda@Edge function running the dispatch engine.
// Edge functions cannot read environment variables, so the table name is
// linked into the binary.
func (r *Router) newDispatcher(handlerDir string) experimental.EdgeFunction {
	ldflags := fmt.Sprintf("-s -w -X main.routerTable=%s", r.tableName)
	fn := experimental.NewEdgeFunction(r.Construct, jsii.String("Dispatcher"), &experimental.EdgeFunctionProps{
		Runtime: awslambda.Runtime_PROVIDED_AL2023(),
		Handler: jsii.String("bootstrap"),
		Code:    goHandlerCode(handlerDir, ldflags),
		Timeout: awscdk.Duration_Seconds(jsii.Number(10)),
	})

	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"cloudfront-keyvaluestore:DescribeKeyValueStore",
			"cloudfront-keyvaluestore:GetKey",
		),
		Resources: &[]*string{r.Table.KeyValueStoreArn()},
	}))
	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("cloudfront:DescribeKeyValueStore", "cloudfront:ListKeyValueStores"),
		Resources: jsii.Strings("*"),
	}))
	return fn
}

func (r *Router) addDeclaredRoutes(routes map[string]RouteTarget) error {
	patterns := make([]string, 0, len(routes))
	for pattern := range routes {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		target := routes[pattern]
		switch {
		case target.URL != "" && target.Bucket != nil:
			return &edgecraft.ValidationError{Field: "routes", Message: fmt.Sprintf("route %q declares both a url and a bucket target", pattern)}
		case target.URL != "":
			if err := r.addURLRoute(pattern, target.URL, nil); err != nil {
				return err
			}
		case target.Bucket != nil:
			if err := r.addBucketRoute(pattern, target.Bucket, nil); err != nil {
				return err
			}
		default:
			return &edgecraft.ValidationError{Field: "routes", Message: fmt.Sprintf("route %q declares no target", pattern)}
		}
	}
	return nil
}

// RouteOption customizes a single route registration.
type RouteOption func(*routetable.Metadata)

// WithRewrite replaces the request path via regex before origin selection.
// Capture groups are referenced as $1, $2, ... in to.
func WithRewrite(regex, to string) RouteOption {
	return func(md *routetable.Metadata) {
		md.Rewrite = &routetable.Rewrite{Regex: regex, To: to}
	}
}

// WithOriginOverrides tunes origin connection and timeout behavior for one
// route.
func WithOriginOverrides(overrides routetable.OriginOverrides) RouteOption {
	return func(md *routetable.Metadata) {
		o := overrides
		md.Origin = &o
	}
}

// Route forwards requests matching pattern to an external URL.
func (r *Router) Route(pattern, url string, opts ...RouteOption) error {
	if err := r.markImperative(); err != nil {
		return err
	}
	return r.addURLRoute(pattern, url, opts)
}

// RouteBucket serves requests matching pattern from a bucket.
func (r *Router) RouteBucket(pattern string, bucket awss3.IBucket, opts ...RouteOption) error {
	if err := r.markImperative(); err != nil {
		return err
	}
	return r.addBucketRoute(pattern, bucket, opts)
}

func (r *Router) markImperative() error {
	if r.declarative {
		return &edgecraft.MisuseError{Message: "router was configured with declarative routes; imperative Route calls are not allowed on the same router"}
	}
	r.imperative = true
	return nil
}

func (r *Router) addURLRoute(pattern, url string, opts []RouteOption) error {
	host, err := urlHost(url)
	if err != nil {
		return err
	}
	md := &routetable.Metadata{Host: host}
	for _, opt := range opts {
		opt(md)
	}
	return r.register(pattern, routetable.RouteKindURL, md)
}

func (r *Router) addBucketRoute(pattern string, bucket awss3.IBucket, opts []RouteOption) error {
	domain, err := bucketDomain(r.ctx, *bucket.BucketName())
	if err != nil {
		return err
	}
	md := &routetable.Metadata{Bucket: domain}
	for _, opt := range opts {
		opt(md)
	}
	return r.register(pattern, routetable.RouteKindBucket, md)
}

// bucketDomain builds the regional S3 domain from a concrete bucket name.
// The routing table is written from the synth-time plan, so tokens that only
// resolve at deploy time cannot appear in it: buckets routed to must either
// be imported or carry an explicit bucket name.
func bucketDomain(ctx *edgecraft.DeployContext, name string) (string, error) {
	if strings.Contains(name, "${Token") {
		return "", &edgecraft.ValidationError{Field: "bucket", Message: "bucket has no concrete name; import it or set an explicit bucketName"}
	}
	if ctx.Region == "" {
		return "", &edgecraft.ValidationError{Field: "region", Message: "deploy context needs a region to derive bucket origin domains"}
	}
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", name, ctx.Region), nil
}

// registerSite is called by StaticSite once its metadata is assembled.
func (r *Router) registerSite(id, pattern string, md *routetable.Metadata, contentHash string) error {
	if r.declarative {
		return &edgecraft.MisuseError{Message: "router was configured with declarative routes; sites cannot attach to it"}
	}
	r.imperative = true

	compiled, err := routetable.CompilePattern(pattern)
	if err != nil {
		return err
	}
	if md.Base != "" && !pathCovers(compiled.Path, md.Base) {
		return &edgecraft.ValidationError{Field: "base", Message: fmt.Sprintf("site base %q is outside route path %q", md.Base, compiled.Path)}
	}
	if contentHash != "" {
		r.siteHashes = append(r.siteHashes, contentHash)
	}
	return r.registerCompiled(id, routetable.RouteKindSite, compiled, md)
}

func (r *Router) register(pattern string, kind routetable.RouteKind, md *routetable.Metadata) error {
	compiled, err := routetable.CompilePattern(pattern)
	if err != nil {
		return err
	}
	return r.registerCompiled(pattern, kind, compiled, md)
}

func (r *Router) registerCompiled(nsSource string, kind routetable.RouteKind, compiled routetable.Pattern, md *routetable.Metadata) error {
	ns := naming.Namespace(nsSource)
	if ns == "" {
		return &edgecraft.ValidationError{Field: "pattern", Message: "route pattern produces an empty namespace"}
	}
	if prior, taken := r.namespaces[ns]; taken && prior != nsSource {
		return &edgecraft.ValidationError{Field: "pattern", Message: fmt.Sprintf("routes %q and %q collide on namespace %q", prior, nsSource, ns)}
	}
	r.namespaces[ns] = nsSource

	r.entries = append(r.entries, publish.Entry{
		Descriptor: routetable.RouteDescriptor{
			Kind:      kind,
			Namespace: ns,
			Host:      compiled.Host,
			Path:      compiled.Path,
		},
		Metadata: md,
	})
	return nil
}

// TablePlan returns the routing table writes this router has accumulated.
func (r *Router) TablePlan() *publish.Plan {
	plan := &publish.Plan{
		Table:   r.tableName,
		Entries: append([]publish.Entry{}, r.entries...),
	}
	if len(r.siteHashes) > 0 {
		hashes := append([]string{}, r.siteHashes...)
		sort.Strings(hashes)
		plan.InvalidationHash = strings.Join(hashes, "\n")
	}
	return plan
}

// WriteTablePlan serializes the accumulated plan to path. Call it after all
// routes and sites are registered, before synth returns.
func (r *Router) WriteTablePlan(path string) error {
	if len(r.entries) == 0 {
		annotateWarning(r, "router has no routes, every request falls through to the placeholder origin")
	}
	return publish.WritePlan(r.TablePlan(), path)
}

// urlHost extracts the origin host from an https target URL.
func urlHost(url string) (string, error) {
	host := strings.TrimPrefix(url, "https://")
	if host == url {
		return "", &edgecraft.ValidationError{Field: "url", Message: fmt.Sprintf("route target %q must be an https url", url)}
	}
	host = strings.TrimSuffix(strings.SplitN(host, "/", 2)[0], "/")
	if host == "" {
		return "", &edgecraft.ValidationError{Field: "url", Message: fmt.Sprintf("route target %q has no host", url)}
	}
	return host, nil
}

// pathCovers reports whether base sits under the route path prefix.
func pathCovers(routePath, base string) bool {
	if routePath == "/" {
		return true
	}
	return base == routePath || strings.HasPrefix(base, strings.TrimSuffix(routePath, "/")+"/")
}
