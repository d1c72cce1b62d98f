package naming

import "testing"

func TestNormalizeStage(t *testing.T) {
	cases := map[string]string{
		"prod":       "live",
		"Production": "live",
		"dev":        "dev",
		"staging":    "stage",
		"Testing":    "test",
		"local":      "local",
		"My Custom":  "my-custom",
		"  ":         "",
	}
	for in, want := range cases {
		if got := NormalizeStage(in); got != want {
			t.Fatalf("NormalizeStage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResourceName(t *testing.T) {
	if got := ResourceName("My App", "router", "prod"); got != "my-app-router-live" {
		t.Fatalf("unexpected resource name: %q", got)
	}
	if got := ResourceName("app", "", "dev"); got != "app-dev" {
		t.Fatalf("unexpected resource name without component: %q", got)
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("Shop__Front", "staging"); got != "shop-front-stage" {
		t.Fatalf("unexpected base name: %q", got)
	}
}

func TestNamespace_StableAndShort(t *testing.T) {
	a := Namespace("Docs Site")
	b := Namespace("docs-site")
	if a != b {
		t.Fatalf("namespace not stable across spellings: %q vs %q", a, b)
	}
	if len(a) == 0 || len(a) > 12 {
		t.Fatalf("namespace length out of bounds: %q", a)
	}
	if long := Namespace("a-very-long-component-name-indeed"); len(long) != 12 {
		t.Fatalf("expected truncation to 12, got %q", long)
	}
}
