package bookings

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// PartitionOrphans splits items into those whose client still exists and those that
// point at a deleted client. Items without a client id are never orphaned.
func PartitionOrphans[T any](items []T, clientID func(T) string, known map[string]bool) (kept, orphaned []T) {
	kept = make([]T, 0, len(items))
	for _, item := range items {
		id := clientID(item)
		if id != "" && !known[id] {
			orphaned = append(orphaned, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept, orphaned
}

// PhotoRef is a reconciled photo reference: either an object key in our bucket or an
// external URL kept as-is.
type PhotoRef struct {
	Key      string `json:"key,omitempty"`
	External string `json:"external,omitempty"`
}

// PhotoOwner names the record a photo belongs to.
type PhotoOwner struct {
	Company string
	Kind    string // "villas" or "boats"
	ID      string
}

// Prefix is the canonical key prefix for the owner's photos.
func (o PhotoOwner) Prefix() string {
	return path.Join("companies", o.Company, o.Kind, o.ID) + "/"
}

// ReconcilePhotos maps stored photo references onto canonical object keys
// (companies/{company}/{kind}/{owner}/{file}). Firebase download URLs, gs:// URLs
// and bare legacy keys are rewritten; other http(s) URLs are kept verbatim.
// Empty and duplicate references are dropped, order is preserved.
func ReconcilePhotos(refs []string, owner PhotoOwner) []PhotoRef {
	out := make([]PhotoRef, 0, len(refs))
	seen := map[PhotoRef]bool{}
	for _, raw := range refs {
		ref, ok := reconcilePhoto(strings.TrimSpace(raw), owner)
		if !ok || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// PhotoStrings reads a stored photos value: a list of strings, a list of
// {path|url} maps, a JSON-encoded list, or a single string.
func PhotoStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case string, []byte, json.RawMessage:
		raw := rawBytes(t)
		var decoded []any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return PhotoStrings(decoded)
		}
		if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
			return []string{s}
		}
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			if m, ok := asMap(item); ok {
				out = append(out, photoPath(m))
			}
		}
		return out
	}

	var out []string
	for _, m := range asList(v) {
		out = append(out, photoPath(m))
	}
	return out
}

func photoPath(m map[string]any) string {
	return stringField(m, "path", "storagePath", "storage_path", "url", "downloadURL", "src")
}

func reconcilePhoto(raw string, owner PhotoOwner) (PhotoRef, bool) {
	if raw == "" {
		return PhotoRef{}, false
	}

	key := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return PhotoRef{External: raw}, true
		}
		switch {
		case u.Scheme == "gs":
			key = u.Path
		case u.Host == "firebasestorage.googleapis.com":
			_, object, found := strings.Cut(u.Path, "/o/")
			if !found {
				return PhotoRef{External: raw}, true
			}
			key = object
		case u.Host == "storage.googleapis.com":
			// /{bucket}/{object}
			parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
			if len(parts) < 2 {
				return PhotoRef{External: raw}, true
			}
			key = parts[1]
		default:
			return PhotoRef{External: raw}, true
		}
	}

	key = strings.Trim(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return PhotoRef{}, false
	}
	// Canonical keys of another company are re-homed, never resolved as-is.
	if strings.HasPrefix(key, "companies/"+owner.Company+"/") && strings.Count(key, "/") >= 4 {
		return PhotoRef{Key: key}, true
	}
	return PhotoRef{Key: owner.Prefix() + path.Base(key)}, true
}
