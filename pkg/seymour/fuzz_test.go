// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPayload builds a printable payload without delimiters
func randomPayload(rng *rand.Rand) string {
	n := rng.Intn(40)
	b := make([]byte, 0, n)
	for len(b) < n {
		c := byte(0x20 + rng.Intn(0x7F-0x20))
		if c == StartByte || c == EndByte {
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

// ============================================================
// Codec Fuzz Tests
// ============================================================

// TestFuzzRoundTrip encodes random valid frames and checks they decode
// back to the same fields
func TestFuzzRoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		address := strconv.Itoa(10 + rng.Intn(90))
		command := Command('A' + rng.Intn(26))
		payload := randomPayload(rng)

		data, err := Encode(address, command, payload)
		if err != nil {
			t.Fatalf("round %d: Encode(%q, %c, %q) failed: %v", i, address, command, payload, err)
		}
		frame, n, err := Decode(data)
		if err != nil {
			t.Fatalf("round %d: Decode(%q) failed: %v", i, data, err)
		}
		if n != len(data) || frame.Address() != address || frame.Command() != command || frame.Payload() != payload {
			t.Fatalf("round %d: %q did not round trip", i, data)
		}
	}
}

// TestFuzzDecoder_RandomBytes feeds random bytes to both decoders and
// checks they agree on every complete frame
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	alphabet := []byte("[]01YPSAJ,;/-0123456789 \x00\xff")

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(64))
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}

		var streamed []string
		d := NewDecoder()
		for _, b := range buf {
			frame, err := d.DecodeByte(b)
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Fatalf("round %d: unexpected error %v", i, err)
			}
			if frame != nil {
				streamed = append(streamed, frame.String())
			}
		}

		var buffered []string
		rest := buf
		for len(rest) > 0 {
			frame, n, err := Decode(rest)
			if errors.Is(err, ErrNeedMoreData) {
				break
			}
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Fatalf("round %d: unexpected error %v", i, err)
			}
			if n == 0 {
				t.Fatalf("round %d: Decode made no progress on %q", i, rest)
			}
			rest = rest[n:]
			if frame != nil {
				buffered = append(buffered, frame.String())
			}
		}

		if len(streamed) != len(buffered) {
			t.Fatalf("round %d: %q decoded to %v (stream) vs %v (buffer)", i, buf, streamed, buffered)
		}
		for k := range streamed {
			if streamed[k] != buffered[k] {
				t.Fatalf("round %d: frame %d differs: %s vs %s", i, k, streamed[k], buffered[k])
			}
		}
	}
}

// FuzzDecode checks Decode never reports a frame that does not re-encode
// to the bytes it consumed.
func FuzzDecode(f *testing.F) {
	f.Add([]byte("[01Y]"))
	f.Add([]byte("[01P4,10,20,30,40]"))
	f.Add([]byte("xx[01S99401"))
	f.Add([]byte("[01P4,1[01Y]"))

	f.Fuzz(func(t *testing.T, data []byte) {
		frame, n, err := Decode(data)
		if n < 0 || n > len(data) {
			t.Fatalf("consumed %d of %d", n, len(data))
		}
		if err != nil {
			if frame != nil {
				t.Fatal("frame returned with error")
			}
			return
		}
		encoded, encErr := EncodeFrame(frame)
		if encErr != nil {
			t.Fatalf("decoded frame does not encode: %v", encErr)
		}
		if !bytes.Equal(encoded, data[:n]) {
			t.Fatalf("re-encoded %q, consumed %q", encoded, data[:n])
		}
	})
}
