package cdk

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// Synth-time diagnostics ride on CDK construct metadata so they surface in
// `cdk synth` / `cdk deploy` output next to the construct that produced them.

func annotateInfo(scope constructs.Construct, format string, args ...any) {
	awscdk.Annotations_Of(scope).AddInfo(jsii.String(fmt.Sprintf(format, args...)))
}

func annotateWarning(scope constructs.Construct, format string, args ...any) {
	awscdk.Annotations_Of(scope).AddWarning(jsii.String(fmt.Sprintf(format, args...)))
}
