package kv

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeWithExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"userId":"u1"}`)

	plain, err := encodeWithExpiry(payload, 0)
	if err != nil || !bytes.Equal(plain, payload) {
		t.Fatalf("expireAt=0 must not wrap, got %q %v", plain, err)
	}

	wrapped, err := encodeWithExpiry(payload, now.Unix()+60)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(wrapped, []byte(ttlMagic)) {
		t.Fatalf("expected magic prefix, got %q", wrapped)
	}

	v, expired, err := decodeWithExpiry(wrapped, now)
	if err != nil || expired || !bytes.Equal(v, payload) {
		t.Errorf("decode before expiry = %q, %v, %v", v, expired, err)
	}

	_, expired, err = decodeWithExpiry(wrapped, now.Add(time.Minute))
	if err != nil || !expired {
		t.Errorf("expected expired at expireAt, got %v %v", expired, err)
	}

	v, expired, err = decodeWithExpiry(payload, now)
	if err != nil || expired || !bytes.Equal(v, payload) {
		t.Errorf("unwrapped values pass through, got %q %v %v", v, expired, err)
	}

	if _, _, err := decodeWithExpiry([]byte(ttlMagic+"{"), now); err == nil {
		t.Error("expected error for corrupt wrapper")
	}
}
