package cdk

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/edgecraft/edgecraft"
	"github.com/edgecraft/edgecraft/routetable"
	"github.com/edgecraft/edgecraft/sitemeta"
)

// StaticSiteProps configure a StaticSite.
type StaticSiteProps struct {
	// Dir is the built output directory to upload and serve.
	Dir string

	// Path is the route pattern the site is mounted at, "/" when empty.
	// A host pattern may be included ("docs.example.com/").
	Path string

	// Base is the path prefix stripped from request URIs before asset
	// lookup. It must sit under Path.
	Base string

	// Custom404 serves the named asset for unmatched paths instead of
	// falling through.
	Custom404 string

	// ExpandDirs overrides the assembler's expandable directory allow-list.
	ExpandDirs []string

	// DeepRoutePrefix marks one directory as routable a level deeper.
	DeepRoutePrefix string

	// ImmutablePrefixes name directories of content-hashed assets. Their
	// contents are excluded from the invalidation hash.
	ImmutablePrefixes []string

	// Servers are optional regional compute origins for requests no asset
	// covers, picked by viewer proximity.
	Servers []routetable.ServerEndpoint

	// Image routes matching requests to an image optimization sidecar.
	Image *routetable.ImageOptimizer

	// Origin tunes origin connection behavior for the site's server origins.
	Origin *routetable.OriginOverrides
}

// StaticSite uploads a built site into a bucket and registers it on a
// router. Assets land under a content-addressed prefix, so a redeploy
// becomes visible only when the routing metadata flips to the new prefix.
type StaticSite struct {
	constructs.Construct

	Bucket awss3.Bucket

	// ContentHash summarizes the mutable site content of this build.
	ContentHash string
}

// NewStaticSite assembles the site's routing metadata from the built output
// directory, provisions the asset bucket and upload, and registers the site
// on router.
func NewStaticSite(scope constructs.Construct, id string, ctx *edgecraft.DeployContext, router *Router, props *StaticSiteProps) (*StaticSite, error) {
	if props == nil || props.Dir == "" {
		return nil, &edgecraft.ValidationError{Field: "dir", Message: "static site needs a built output directory"}
	}
	if _, err := os.Stat(props.Dir); err != nil {
		return nil, &edgecraft.ValidationError{Field: "dir", Message: fmt.Sprintf("site directory %s: %v", props.Dir, err)}
	}

	pattern := props.Path
	if pattern == "" {
		pattern = "/"
	}

	fsys := os.DirFS(props.Dir)
	manifest, err := sitemeta.Assemble(fsys, sitemeta.Options{
		ExpandDirs:      props.ExpandDirs,
		DeepRoutePrefix: props.DeepRoutePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble site %s: %w", id, err)
	}
	hash, err := sitemeta.InvalidationHash(fsys, props.ImmutablePrefixes)
	if err != nil {
		return nil, fmt.Errorf("hash site %s: %w", id, err)
	}

	construct := constructs.NewConstruct(scope, jsii.String(id))

	bucketName := ctx.ResourceName(id)
	domain, err := bucketDomain(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	bucket := awss3.NewBucket(construct, jsii.String("Assets"), &awss3.BucketProps{
		BucketName:        jsii.String(bucketName),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ACLS_ONLY(),
		PublicReadAccess:  jsii.Bool(true),
		RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
		AutoDeleteObjects: jsii.Bool(true),
	})

	// Content-addressed asset prefix. Old assets stay readable while cached
	// responses referencing them drain.
	assetDir := fmt.Sprintf("%s-%s", id, hash[:8])
	awss3deployment.NewBucketDeployment(construct, jsii.String("Deploy"), &awss3deployment.BucketDeploymentProps{
		Sources:              &[]awss3deployment.ISource{awss3deployment.Source_Asset(jsii.String(props.Dir), nil)},
		DestinationBucket:    bucket,
		DestinationKeyPrefix: jsii.String(assetDir),
		Prune:                jsii.Bool(false),
	})

	md := &routetable.Metadata{
		Base:      props.Base,
		Custom404: props.Custom404,
		S3:        manifest.SiteAssets(domain, assetDir),
		Image:     props.Image,
		Servers:   props.Servers,
		Origin:    props.Origin,
	}
	if err := router.registerSite(id, pattern, md, hash); err != nil {
		return nil, err
	}

	annotateInfo(construct, "site %s: %d files, %d directory routes, assets at s3://%s/%s",
		id, len(manifest.Files), len(manifest.DirRoutes), bucketName, assetDir)

	return &StaticSite{
		Construct:   construct,
		Bucket:      bucket,
		ContentHash: hash,
	}, nil
}
