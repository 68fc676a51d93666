package codec

import (
	"errors"
	"math"
	"testing"

	"main/internal/schema"
	"main/pkg/exception"
)

func TestActionV1RoundTrip(t *testing.T) {
	orig := schema.TradingAction{
		Type:   1,
		Price:  -0.0025,
		Volume: 3.5,
	}

	encoded := EncodeActionV1(nil, orig)
	if len(encoded) != ActionV1Size {
		t.Fatalf("encoded size mismatch: got %d want %d", len(encoded), ActionV1Size)
	}

	decoded, err := DecodeActionV1(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Type != orig.Type {
		t.Fatalf("type mismatch: got %d want %d", decoded.Type, orig.Type)
	}
	if math.Abs(decoded.Price-orig.Price) > math.Pow(2, -62) {
		t.Fatalf("price mismatch: got %v want %v", decoded.Price, orig.Price)
	}
	if math.Abs(decoded.Volume-orig.Volume) > math.Pow(2, -52) {
		t.Fatalf("volume mismatch: got %v want %v", decoded.Volume, orig.Volume)
	}
}

func TestActionV1TypeMasked(t *testing.T) {
	encoded := EncodeActionV1(nil, schema.TradingAction{Type: 0xFF})
	decoded, err := DecodeActionV1(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Type != 0x07 {
		t.Fatalf("type should be masked to low 3 bits: got %#x", decoded.Type)
	}
}

func TestActionV2RoundTrip(t *testing.T) {
	orig := schema.TradingAction{
		Type:     2,
		Price:    0.0031,
		Volume:   1.2,
		MidPrice: 65432.17,
		StateID:  4099,
	}

	encoded, err := EncodeActionV2(nil, orig)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(encoded) != ActionV2Size {
		t.Fatalf("encoded size mismatch: got %d want %d", len(encoded), ActionV2Size)
	}

	decoded, err := DecodeActionV2(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.StateID != orig.StateID {
		t.Fatalf("state ID mismatch: got %d want %d", decoded.StateID, orig.StateID)
	}
	if math.Abs(decoded.MidPrice-orig.MidPrice) > 0.005 {
		t.Fatalf("mid price mismatch: got %v want %v", decoded.MidPrice, orig.MidPrice)
	}
	if math.Abs(decoded.Price-orig.Price) > math.Pow(2, -62) {
		t.Fatalf("price mismatch: got %v want %v", decoded.Price, orig.Price)
	}
}

func TestActionV2MidPriceRange(t *testing.T) {
	for _, mid := range []float64{-1, 1_000_000.01} {
		_, err := EncodeActionV2(nil, schema.TradingAction{MidPrice: mid})
		if !errors.Is(err, exception.ErrMidPriceOutOfRange) {
			t.Fatalf("mid price %v should be rejected, got %v", mid, err)
		}
	}
}

func TestDecodeMalformedLength(t *testing.T) {
	if _, err := DecodeActionV1(make([]byte, ActionV1Size-1)); !errors.Is(err, exception.ErrMalformedMessage) {
		t.Fatalf("short V1 payload should fail, got %v", err)
	}
	if _, err := DecodeActionV2(make([]byte, ActionV2Size+1)); !errors.Is(err, exception.ErrMalformedMessage) {
		t.Fatalf("long V2 payload should fail, got %v", err)
	}
	if _, err := DecodeSnapshot(make([]byte, SnapshotSize-8)); !errors.Is(err, exception.ErrMalformedMessage) {
		t.Fatalf("short snapshot payload should fail, got %v", err)
	}
}
