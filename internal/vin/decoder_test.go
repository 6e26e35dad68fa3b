package vin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRemote struct {
	desc  *Descriptor
	err   error
	delay time.Duration
	calls int
}

func (s *stubRemote) Decode(ctx context.Context, vin string) (*Descriptor, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.desc, nil
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name     string
		vin      string
		expected bool
	}{
		{"well formed", "1HGCM82633A123456", true},
		{"too short", "1HGCM82633", false},
		{"too long", "1HGCM82633A1234567", false},
		{"contains I", "1HGCM82633AI23456", false},
		{"contains O", "1HGCM82633AO23456", false},
		{"contains Q", "1HGCM82633AQ23456", false},
		{"lowercase rejected", "1hgcm82633a123456", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateStructure(tt.vin); got != tt.expected {
				t.Errorf("ValidateStructure(%q) = %v, want %v", tt.vin, got, tt.expected)
			}
		})
	}
}

func TestCheckDigitValid(t *testing.T) {
	// All-ones VIN: weighted sum is 89, 89 % 11 = 1, so '1' at position 9
	// is the correct check digit.
	assert.True(t, CheckDigitValid("11111111111111111"))
	assert.False(t, CheckDigitValid("11111111411111111"))
}

func TestDecoder_RemoteSuccess(t *testing.T) {
	remote := &stubRemote{desc: &Descriptor{Make: "Honda", Model: "Accord", Year: 2003}}
	d := NewDecoder(remote, Config{}, zap.NewNop())

	desc := d.Decode(context.Background(), "1HGCM82633A123456")

	require.NotNil(t, desc)
	assert.Equal(t, SourceRemote, desc.Source)
	assert.Equal(t, "Honda", desc.Make)
	assert.Equal(t, "Accord", desc.Model)
	assert.InDelta(t, 0.95, desc.Confidence, 0.001)
}

func TestDecoder_RemoteTimeoutFallsBackToLocal(t *testing.T) {
	remote := &stubRemote{delay: 200 * time.Millisecond, desc: &Descriptor{Make: "Honda"}}
	d := NewDecoder(remote, Config{RemoteTimeout: 10 * time.Millisecond}, zap.NewNop())

	desc := d.Decode(context.Background(), "1HGCM82633A123456")

	require.NotNil(t, desc)
	assert.Equal(t, SourceLocal, desc.Source)
	assert.Equal(t, "Honda", desc.Make)
	assert.Equal(t, "North America", desc.Region)
	assert.Equal(t, 2003, desc.Year)
}

func TestDecoder_RemoteErrorFallsBackToLocal(t *testing.T) {
	remote := &stubRemote{err: errors.New("service unavailable")}
	d := NewDecoder(remote, Config{}, zap.NewNop())

	desc := d.Decode(context.Background(), "WVWZZZ3CZ8E123456")

	require.NotNil(t, desc)
	assert.Equal(t, SourceLocal, desc.Source)
	assert.Equal(t, "Volkswagen", desc.Make)
}

func TestDecoder_UnknownWMINeverFails(t *testing.T) {
	d := NewDecoder(nil, Config{}, zap.NewNop())

	desc := d.Decode(context.Background(), "ZZZZZ82633A123456")

	require.NotNil(t, desc)
	assert.Equal(t, SourceUnknown, desc.Source)
	assert.Empty(t, desc.Make)
}

func TestDecoder_MalformedVINNeverFails(t *testing.T) {
	d := NewDecoder(nil, Config{}, zap.NewNop())

	desc := d.Decode(context.Background(), "not-a-vin")

	require.NotNil(t, desc)
	assert.Equal(t, SourceUnknown, desc.Source)
}

func TestDecoder_CachesByVIN(t *testing.T) {
	remote := &stubRemote{desc: &Descriptor{Make: "Honda"}}
	d := NewDecoder(remote, Config{CacheTTL: time.Minute}, zap.NewNop())

	_ = d.Decode(context.Background(), "1HGCM82633A123456")
	_ = d.Decode(context.Background(), "1HGCM82633A123456")

	assert.Equal(t, 1, remote.calls, "second decode should hit the cache")
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newCache(20 * time.Millisecond)
	c.put("K", &Descriptor{Make: "Honda"})

	_, ok := c.get("K")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.get("K")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}

func TestDecodeLocal_YearCycle(t *testing.T) {
	// Position 10 is '3': 2033 is in the future, so the previous cycle
	// (2003) applies.
	desc := decodeLocal("1HGCM82633A123456")
	assert.Equal(t, 2003, desc.Year)
}
