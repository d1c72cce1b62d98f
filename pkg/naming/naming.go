package naming

import (
	"regexp"
	"strings"
)

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9-]+`)
	multiDash = regexp.MustCompile(`-+`)
)

func sanitizePart(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.ReplaceAll(value, " ", "-")
	value = nonAlnum.ReplaceAllString(value, "-")
	value = multiDash.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	return value
}

// NormalizeStage maps stage aliases to canonical values.
//
// Canonical stages are lowercased and safe for typical resource naming schemes.
func NormalizeStage(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	switch stage {
	case "prod", "production", "live":
		return "live"
	case "dev", "development":
		return "dev"
	case "stg", "stage", "staging":
		return "stage"
	case "test", "testing":
		return "test"
	case "local":
		return "local"
	default:
		return sanitizePart(stage)
	}
}

// BaseName returns the deterministic <app>-<stage> base name.
func BaseName(appName, stage string) string {
	app := sanitizePart(appName)
	stage = NormalizeStage(stage)

	parts := []string{app}
	if stage != "" {
		parts = append(parts, stage)
	}
	return strings.Join(parts, "-")
}

// ResourceName returns the deterministic <app>-<resource>-<stage> name for a
// component-owned resource.
func ResourceName(appName, resource, stage string) string {
	app := sanitizePart(appName)
	resource = sanitizePart(resource)
	stage = NormalizeStage(stage)

	parts := []string{app}
	if resource != "" {
		parts = append(parts, resource)
	}
	if stage != "" {
		parts = append(parts, stage)
	}
	return strings.Join(parts, "-")
}

// Namespace derives the short opaque namespace that scopes one route or
// site's entries inside a shared routing table. It must be stable across
// redeploys of the same logical component so metadata is replaced in place.
func Namespace(component string) string {
	ns := sanitizePart(component)
	ns = strings.ReplaceAll(ns, "-", "")
	if len(ns) > 12 {
		ns = ns[:12]
	}
	return ns
}
