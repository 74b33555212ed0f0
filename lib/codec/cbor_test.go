// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleNotice mirrors the shape of internal wire types: keyasint tags
// for compact field keys.
type sampleNotice struct {
	TokenID   string `cbor:"1,keyasint"`
	RevokedAt int64  `cbor:"2,keyasint"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleNotice{
		TokenID:   "9f2b7a1c-55e3-4b08-a8f1-2c9d04c1e911",
		RevokedAt: 1767312000,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleNotice
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	// Maps built in different insertion orders must encode to
	// identical bytes, otherwise signatures over encoded payloads
	// would not reverify.
	first := map[string]int{}
	for _, k := range []string{"alpha", "beta", "gamma", "delta"} {
		first[k] = len(k)
	}
	second := map[string]int{}
	for _, k := range []string{"delta", "gamma", "beta", "alpha"} {
		second[k] = len(k)
	}

	firstBytes, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	secondBytes, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Errorf("same map contents encoded differently:\n%x\n%x", firstBytes, secondBytes)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	extended := struct {
		TokenID   string `cbor:"1,keyasint"`
		RevokedAt int64  `cbor:"2,keyasint"`
		Reason    string `cbor:"3,keyasint"`
	}{
		TokenID:   "tok-1",
		RevokedAt: 42,
		Reason:    "rotation",
	}

	data, err := Marshal(extended)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleNotice
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal should tolerate unknown fields: %v", err)
	}
	if decoded.TokenID != "tok-1" || decoded.RevokedAt != 42 {
		t.Errorf("decoded = %+v, want known fields preserved", decoded)
	}
}
