package hostapi

import "strings"

// IDs is ctx.api.ids: host-id namespacing helpers. instancePrefix is
// this adapter's own id namespace (e.g. "msghub.0").
type IDs struct {
	InstancePrefix string
}

// ToOwnId qualifies a bare local id under the instance's own namespace,
// a no-op if id is already fully qualified under it.
func (i IDs) ToOwnId(id string) string {
	if strings.HasPrefix(id, i.InstancePrefix+".") {
		return id
	}
	return i.InstancePrefix + "." + strings.TrimPrefix(id, ".")
}

// ToFullId qualifies id under another instance's namespace.
func (i IDs) ToFullId(instance, id string) string {
	if strings.HasPrefix(id, instance+".") {
		return id
	}
	return instance + "." + strings.TrimPrefix(id, ".")
}
