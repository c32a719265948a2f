package redis

import "strings"

const defaultKeyPrefix = "stockhold"

// Keys builds namespaced keys. Environments sharing one server keep apart
// by prefix.
type Keys struct {
	prefix string
}

func NewKeys(prefix string) Keys {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keys{prefix: prefix}
}

func (k Keys) Idempotency(scope, id string) string {
	return k.build("idempotency", scope, id)
}

func (k Keys) RateLimit(scope string) string {
	return k.build("rate_limit", scope)
}

func (k Keys) Lock(name string) string {
	return k.build("lock", name)
}

func (k Keys) build(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
