package topic

import (
	"strings"
)

// Builder constructs MQTT topic strings of the form {root}/{segment}/{id}.
// A Builder derived with Shared prefixes every topic with $share/{group}/.
type Builder struct {
	// root is the base namespace for all topics (e.g., "ro/v1").
	root string

	// group is the shared subscription group, empty for plain topics.
	group string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the configured namespace.
func (b *Builder) Root() string {
	return b.root
}

// Shared returns a copy of the builder that emits shared subscription filters.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, group: group}
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return b.prefix() + join(b.root, segment, id)
}

// BuildWildcard returns {root}/{segment}/+, used to subscribe for every vehicle.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// ID extracts the trailing identifier of a topic built for segment.
// It returns false when topic does not belong to segment.
func (b *Builder) ID(segment, topic string) (string, bool) {
	prefix := join(b.root, segment) + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (b *Builder) prefix() string {
	if b.group == "" {
		return ""
	}
	return "$share/" + b.group + "/"
}

func join(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}
