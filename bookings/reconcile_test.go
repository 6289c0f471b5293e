package bookings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type offerStub struct {
	ID       string
	ClientID string
}

func TestPartitionOrphans(t *testing.T) {
	offers := []offerStub{
		{"o1", "c1"},
		{"o2", "deleted"},
		{"o3", ""},
		{"o4", "c2"},
	}
	known := map[string]bool{"c1": true, "c2": true}

	kept, orphaned := PartitionOrphans(offers, func(o offerStub) string { return o.ClientID }, known)
	assert.Equal(t, []offerStub{{"o1", "c1"}, {"o3", ""}, {"o4", "c2"}}, kept)
	assert.Equal(t, []offerStub{{"o2", "deleted"}}, orphaned)

	kept, orphaned = PartitionOrphans([]offerStub{}, func(o offerStub) string { return o.ClientID }, nil)
	assert.Empty(t, kept)
	assert.Nil(t, orphaned)
}

func TestReconcilePhotos(t *testing.T) {
	owner := PhotoOwner{Company: "acme", Kind: "villas", ID: "v123"}

	refs := []string{
		"https://firebasestorage.googleapis.com/v0/b/legacy.appspot.com/o/villas%2Fold-id%2Fpool.jpg?alt=media&token=abc",
		"gs://legacy.appspot.com/villas/old-id/terrace.jpg",
		"https://storage.googleapis.com/legacy.appspot.com/images/view.png",
		"villas/bedroom.jpg",
		"/villas/old-id/pool.jpg",
		"companies/acme/villas/v123/kitchen.jpg",
		"https://cdn.example.com/brochure/cover.jpg",
		"companies/other/villas/v9/secret.jpg",
		"companies/acme/boats/b1/deck.jpg",
		"",
		"   ",
	}

	got := ReconcilePhotos(refs, owner)
	assert.Equal(t, []PhotoRef{
		{Key: "companies/acme/villas/v123/pool.jpg"},
		{Key: "companies/acme/villas/v123/terrace.jpg"},
		{Key: "companies/acme/villas/v123/view.png"},
		{Key: "companies/acme/villas/v123/bedroom.jpg"},
		{Key: "companies/acme/villas/v123/kitchen.jpg"},
		{External: "https://cdn.example.com/brochure/cover.jpg"},
		{Key: "companies/acme/villas/v123/secret.jpg"},
		{Key: "companies/acme/boats/b1/deck.jpg"},
	}, got)
}

func TestPhotoStrings(t *testing.T) {
	assert.Nil(t, PhotoStrings(nil))
	assert.Equal(t, []string{"a.jpg"}, PhotoStrings("a.jpg"))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, PhotoStrings(`["a.jpg","b.jpg"]`))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, PhotoStrings([]any{
		"a.jpg",
		map[string]any{"url": "b.jpg"},
	}))
	assert.Equal(t, []string{"p/c.jpg"}, PhotoStrings([]any{map[string]any{"storagePath": "p/c.jpg", "url": "ignored"}}))
}
