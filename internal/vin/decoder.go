// Package vin decodes 17-character vehicle identification numbers into a
// best-effort vehicle descriptor. Decoding never fails the pipeline: a
// remote lookup is attempted under a deadline, a local pattern table
// covers timeouts and failures, and the worst case is an unknown
// descriptor tagged with its source.
package vin

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source tags where a descriptor's data came from
type Source string

const (
	SourceRemote  Source = "REMOTE"
	SourceLocal   Source = "LOCAL"
	SourceUnknown Source = "UNKNOWN"
)

// Descriptor is the decoded vehicle identity
type Descriptor struct {
	VIN          string  `json:"vin"`
	Valid        bool    `json:"valid"`
	Manufacturer string  `json:"manufacturer"`
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	Region       string  `json:"region"`
	Source       Source  `json:"source"`
	Confidence   float64 `json:"confidence"`
}

// RemoteProvider is the remote decode collaborator
type RemoteProvider interface {
	Decode(ctx context.Context, vin string) (*Descriptor, error)
}

// Config holds decoder configuration
type Config struct {
	RemoteTimeout time.Duration
	CacheTTL      time.Duration
}

// Decoder validates and decodes VINs with a remote/local/unknown fallback chain
type Decoder struct {
	remote        RemoteProvider
	remoteTimeout time.Duration
	cache         *cache
	logger        *zap.Logger
}

// NewDecoder creates a decoder. remote may be nil, in which case only the
// local table is consulted.
func NewDecoder(remote RemoteProvider, cfg Config, logger *zap.Logger) *Decoder {
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Decoder{
		remote:        remote,
		remoteTimeout: timeout,
		cache:         newCache(ttl),
		logger:        logger,
	}
}

// Decode returns a descriptor for the given VIN. It never returns an
// error; structurally invalid input yields an unknown descriptor.
func (d *Decoder) Decode(ctx context.Context, vin string) *Descriptor {
	vin = strings.ToUpper(strings.TrimSpace(vin))

	if cached, ok := d.cache.get(vin); ok {
		return cached
	}

	if !ValidateStructure(vin) {
		desc := &Descriptor{VIN: vin, Source: SourceUnknown}
		d.cache.put(vin, desc)
		return desc
	}
	digitOK := CheckDigitValid(vin)

	if d.remote != nil {
		remoteCtx, cancel := context.WithTimeout(ctx, d.remoteTimeout)
		desc, err := d.remote.Decode(remoteCtx, vin)
		cancel()
		if err == nil && desc != nil && desc.Make != "" {
			desc.VIN = vin
			desc.Valid = digitOK
			desc.Source = SourceRemote
			if desc.Confidence == 0 {
				desc.Confidence = 0.95
			}
			d.cache.put(vin, desc)
			return desc
		}
		if err != nil {
			d.logger.Warn("Remote VIN decode failed, falling back to local table",
				zap.String("vin", vin),
				zap.Error(err))
		}
	}

	desc := decodeLocal(vin)
	desc.Valid = digitOK
	d.cache.put(vin, desc)
	return desc
}

// ValidateStructure checks length and charset. The check digit is
// deliberately not part of structural validity: VINs from outside North
// America do not carry one, so a mismatch lowers confidence instead of
// rejecting the VIN.
func ValidateStructure(vin string) bool {
	if len(vin) != 17 {
		return false
	}
	for _, r := range vin {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
		if r == 'I' || r == 'O' || r == 'Q' {
			return false
		}
	}
	return true
}

// CheckDigitValid reports whether position 9 matches the ISO 3779 check digit
func CheckDigitValid(vin string) bool {
	return len(vin) == 17 && checkDigit(vin) == vin[8]
}

var transliteration = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
}

var positionWeights = []int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// checkDigit computes the expected value of position 9
func checkDigit(vin string) byte {
	sum := 0
	for i := 0; i < 17; i++ {
		c := vin[i]
		var v int
		if c >= '0' && c <= '9' {
			v = int(c - '0')
		} else {
			v = transliteration[c]
		}
		sum += v * positionWeights[i]
	}
	rem := sum % 11
	if rem == 10 {
		return 'X'
	}
	return byte('0' + rem)
}
