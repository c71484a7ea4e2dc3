package condcache

import "testing"

func TestETagFor(t *testing.T) {
	body := []byte(`[{"id":1,"name":"Tom"}]`)

	tag := ETagFor(body)
	if tag == "" {
		t.Fatal("expected a non-empty tag")
	}
	if tag[0] != '"' || tag[len(tag)-1] != '"' {
		t.Fatalf("tag %q is not quoted", tag)
	}

	if again := ETagFor(body); again != tag {
		t.Fatalf("tag not deterministic: %q != %q", again, tag)
	}
	if other := ETagFor([]byte(`[{"id":1,"name":"Tim"}]`)); other == tag {
		t.Fatal("different bodies produced the same tag")
	}
}

func TestETagForEmptyBody(t *testing.T) {
	// SHA-256 of zero bytes, raw URL-safe base64.
	const want = `"47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU"`
	if got := ETagFor(nil); got != want {
		t.Fatalf("ETagFor(nil) = %q, want %q", got, want)
	}
	if got := ETagFor([]byte{}); got != want {
		t.Fatalf("ETagFor(empty) = %q, want %q", got, want)
	}
}
