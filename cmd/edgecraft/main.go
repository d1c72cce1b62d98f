// Command edgecraft is the deploy tool: it synthesizes the CDK app described
// by edgecraft.yaml and, after `cdk deploy` completes, publishes the routing
// table plan to the live key-value store.
//
// Synth runs under the CDK CLI (`cdk deploy` executes this binary); the
// publish step is invoked directly:
//
//	edgecraft publish [-config edgecraft.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft"
	"github.com/edgecraft/edgecraft/cdk"
	"github.com/edgecraft/edgecraft/pkg/logger"
	"github.com/edgecraft/edgecraft/publish"
	"github.com/edgecraft/edgecraft/routetable"
)

func main() {
	os.Exit(run())
}

func run() int {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "publish" {
		return runPublish(args[1:])
	}
	return runSynth(args)
}

func runSynth(args []string) int {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	configPath := fs.String("config", "edgecraft.yaml", "deploy configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "edgecraft: %v\n", err)
		return 2
	}
	log := mustLogger(cfg.Stage)
	defer log.Sync()

	if err := synth(cfg, log); err != nil {
		log.Error("synth failed", zap.Error(err))
		return 1
	}
	return 0
}

func synth(cfg *appConfig, log *zap.Logger) error {
	ctx, err := edgecraft.NewDeployContext(cfg.App, cfg.Stage, edgecraft.WithRegion(cfg.Region))
	if err != nil {
		return err
	}

	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String(ctx.BaseName()), &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: optString(cfg.Account),
			Region:  jsii.String(cfg.Region),
		},
	})

	router, err := cdk.NewRouter(stack, cfg.Router.ID, ctx, &cdk.RouterProps{
		HandlerDir: cfg.Router.HandlerDir,
	})
	if err != nil {
		return err
	}

	if err := addRoutes(stack, router, cfg.Router.Routes); err != nil {
		return err
	}
	for _, site := range cfg.Router.Sites {
		if _, err := cdk.NewStaticSite(stack, site.ID, ctx, router, siteProps(site)); err != nil {
			return err
		}
	}

	if err := router.WriteTablePlan(cfg.Plan); err != nil {
		return err
	}
	log.Info("routing table plan written", zap.String("path", cfg.Plan))

	app.Synth(nil)
	return nil
}

func addRoutes(stack awscdk.Stack, router *cdk.Router, routes map[string]routeConfig) error {
	patterns := make([]string, 0, len(routes))
	for pattern := range routes {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for i, pattern := range patterns {
		route := routes[pattern]
		opts := routeOptions(route)
		switch {
		case route.URL != "" && route.Bucket != "":
			return &edgecraft.ValidationError{Field: "routes", Message: fmt.Sprintf("route %q declares both a url and a bucket", pattern)}
		case route.URL != "":
			if err := router.Route(pattern, route.URL, opts...); err != nil {
				return err
			}
		case route.Bucket != "":
			bucket := awss3.Bucket_FromBucketName(stack, jsii.Sprintf("RouteBucket%d", i), jsii.String(route.Bucket))
			if err := router.RouteBucket(pattern, bucket, opts...); err != nil {
				return err
			}
		default:
			return &edgecraft.ValidationError{Field: "routes", Message: fmt.Sprintf("route %q declares no target", pattern)}
		}
	}
	return nil
}

func routeOptions(route routeConfig) []cdk.RouteOption {
	var opts []cdk.RouteOption
	if route.RewriteRegex != "" {
		opts = append(opts, cdk.WithRewrite(route.RewriteRegex, route.RewriteTo))
	}
	overrides := routetable.OriginOverrides{
		ReadTimeout:      route.ReadTimeout,
		KeepAliveTimeout: route.KeepAliveTimeout,
	}
	if overrides != (routetable.OriginOverrides{}) {
		opts = append(opts, cdk.WithOriginOverrides(overrides))
	}
	return opts
}

func siteProps(site siteConfig) *cdk.StaticSiteProps {
	props := &cdk.StaticSiteProps{
		Dir:               site.Dir,
		Path:              site.Path,
		Base:              site.Base,
		Custom404:         site.Custom404,
		DeepRoutePrefix:   site.DeepRoutePrefix,
		ImmutablePrefixes: site.ImmutablePrefixes,
	}
	for _, server := range site.Servers {
		props.Servers = append(props.Servers, routetable.ServerEndpoint{
			Host: server.Host,
			Lat:  server.Lat,
			Lon:  server.Lon,
		})
	}
	if site.ImageHost != "" {
		props.Image = &routetable.ImageOptimizer{Host: site.ImageHost, Route: site.ImageRoute}
	}
	return props
}

func runPublish(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	configPath := fs.String("config", "edgecraft.yaml", "deploy configuration file")
	planPath := fs.String("plan", "", "plan file (defaults to the config's plan path)")
	distribution := fs.String("distribution", "", "distribution id to invalidate (defaults to the config's)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "edgecraft: %v\n", err)
		return 2
	}
	log := mustLogger(cfg.Stage)
	defer log.Sync()

	if *planPath == "" {
		*planPath = cfg.Plan
	}
	if *distribution == "" {
		*distribution = cfg.Distribution
	}

	plan, err := publish.LoadPlan(*planPath)
	if err != nil {
		log.Error("load plan failed", zap.String("path", *planPath), zap.Error(err))
		return 2
	}

	ctx := context.Background()
	// The KeyValueStore APIs are global, served from us-east-1.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		log.Error("aws configuration failed", zap.Error(err))
		return 1
	}

	publisher := publish.New(
		cloudfront.NewFromConfig(awsCfg),
		cloudfrontkeyvaluestore.NewFromConfig(awsCfg),
		publish.WithLogger(log),
	)
	if err := publisher.Publish(ctx, plan, *distribution); err != nil {
		log.Error("publish failed", zap.Error(err))
		return 1
	}
	log.Info("routing table published",
		zap.String("table", plan.Table),
		zap.Int("entries", len(plan.Entries)))
	return 0
}

func mustLogger(stage string) *zap.Logger {
	log, err := logger.New(stage)
	if err != nil {
		log = zap.NewNop()
	}
	logger.SetLogger(log)
	return logger.Logger()
}

func optString(value string) *string {
	if value == "" {
		return nil
	}
	return jsii.String(value)
}
