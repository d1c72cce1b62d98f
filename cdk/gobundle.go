package cdk

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft/pkg/logger"
)

// goBundling cross-compiles a Go main package into a Lambda deployment asset
// on the host toolchain, skipping the Docker fallback image entirely. The
// binary is named "bootstrap" as the provided.al2023 runtime requires, and
// -ldflags settings let the caller bake deploy-time constants into the
// handler (Lambda@Edge functions cannot read environment variables).
type goBundling struct {
	srcDir  string
	ldflags string
}

var _ awscdk.ILocalBundling = (*goBundling)(nil)

// goHandlerCode packages the main package at srcDir as Lambda function code.
func goHandlerCode(srcDir, ldflags string) awslambda.Code {
	return awslambda.Code_FromAsset(jsii.String(srcDir), &awss3assets.AssetOptions{
		Bundling: &awscdk.BundlingOptions{
			// Never pulled: local bundling either succeeds or the synth fails.
			Image: awscdk.DockerImage_FromRegistry(jsii.String("command.invalid/never-pulled")),
			Local: &goBundling{srcDir: srcDir, ldflags: ldflags},
		},
	})
}

func (b *goBundling) TryBundle(outputDir *string, _ *awscdk.BundlingOptions) *bool {
	args := []string{"build", "-trimpath"}
	if b.ldflags != "" {
		args = append(args, "-ldflags", b.ldflags)
	}
	args = append(args, "-o", filepath.Join(*outputDir, "bootstrap"), ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = b.srcDir
	// Lambda@Edge only runs on x86_64.
	cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logger.Logger().Error("go build for edge handler failed",
			zap.String("src", b.srcDir),
			zap.Error(err),
			zap.String("stderr", stderr.String()))
		return jsii.Bool(false)
	}
	return jsii.Bool(true)
}
