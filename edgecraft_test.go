package edgecraft_test

import (
	"fmt"
	"testing"

	"github.com/edgecraft/edgecraft"
)

func TestNewDeployContext(t *testing.T) {
	ctx, err := edgecraft.NewDeployContext("My App", "production", edgecraft.WithRegion("us-east-1"))
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Stage != "live" {
		t.Fatalf("expected stage alias to normalize to live, got %q", ctx.Stage)
	}
	if got := ctx.BaseName(); got != "my-app-live" {
		t.Fatalf("unexpected base name %q", got)
	}
	if got := ctx.ResourceName("router"); got != "my-app-router-live" {
		t.Fatalf("unexpected resource name %q", got)
	}
}

func TestNewDeployContextRequiresApp(t *testing.T) {
	_, err := edgecraft.NewDeployContext("  ", "dev")
	if !edgecraft.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestIsValidationSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("site web: %w", &edgecraft.ValidationError{Field: "dir", Message: "missing"})
	if !edgecraft.IsValidation(err) {
		t.Fatal("expected IsValidation to match through wrapping")
	}
	if edgecraft.IsValidation(fmt.Errorf("plain")) {
		t.Fatal("expected plain errors not to match")
	}
}

func TestULIDGenerator(t *testing.T) {
	gen := edgecraft.ULIDGenerator{}
	a, b := gen.NewID(), gen.NewID()
	if len(a) != 26 {
		t.Fatalf("unexpected id length %d", len(a))
	}
	if a == b {
		t.Fatal("expected distinct ids")
	}
}
