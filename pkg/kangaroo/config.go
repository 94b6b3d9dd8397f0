package kangaroo

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Config is the parsed search description: an interval and the public keys
// to solve inside it.
type Config struct {
	RangeStartHex string
	RangeEndHex   string
	PubKeysHex    []string
}

// LoadConfigFile reads a search configuration: at least three non-empty
// lines holding the range start (hex), range end (hex) and one or more
// public keys (compressed or uncompressed hex).
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: %s: not enough arguments", ErrInput, path)
	}

	cfg := &Config{
		RangeStartHex: lines[0],
		RangeEndHex:   lines[1],
		PubKeysHex:    lines[2:],
	}
	return cfg, nil
}

// WithConfig applies a loaded configuration to the solver.
func (s *Solver) WithConfig(cfg *Config) *Solver {
	s.rangeStartHex = cfg.RangeStartHex
	s.rangeEndHex = cfg.RangeEndHex
	s.pubKeyHex = append(s.pubKeyHex, cfg.PubKeysHex...)
	return s
}

// WriteEphemeralConfig materialises a config file from CLI-supplied values
// and returns its path; the caller removes it on exit.
func WriteEphemeralConfig(startHex, endHex, pubKeyHex string) (string, error) {
	f, err := os.CreateTemp("", "kangaroo-cfg-*.txt")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s\n%s\n%s\n", startHex, endHex, pubKeyHex); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	return f.Name(), nil
}

// DecToHex converts a decimal string to the hex form the config format
// uses.
func DecToHex(dec string) (string, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(dec), 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return "", fmt.Errorf("%w: invalid decimal value %q", ErrInput, dec)
	}
	return v.Text(16), nil
}

// parsePubKeyHex decodes and validates a public key; off-curve points are
// rejected by the library parser.
func parsePubKeyHex(s string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key hex %q", ErrInput, s)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key %q: %v", ErrInput, s, err)
	}
	return pub, nil
}

// parseInputs validates the configured range and keys. Runs before any
// walker starts so bad input aborts cleanly.
func (s *Solver) parseInputs() error {
	if s.clientMode() {
		// Range and keys come from the server.
		return nil
	}

	if s.rangeStartHex == "" || s.rangeEndHex == "" {
		return fmt.Errorf("%w: search range not set", ErrInput)
	}
	start, err := u256FromHex(s.rangeStartHex)
	if err != nil {
		return err
	}
	end, err := u256FromHex(s.rangeEndHex)
	if err != nil {
		return err
	}
	if start.cmp(end) >= 0 {
		return fmt.Errorf("%w: empty range [%s, %s)", ErrInput, start.hex(), end.hex())
	}
	s.rangeStart = start
	s.rangeEnd = end

	if len(s.pubKeyHex) == 0 {
		return fmt.Errorf("%w: no public key to search", ErrInput)
	}
	s.keys = s.keys[:0]
	for _, kh := range s.pubKeyHex {
		pub, err := parsePubKeyHex(kh)
		if err != nil {
			return err
		}
		s.keys = append(s.keys, pub)
	}

	fmt.Printf("Start:%s\n", strings.ToUpper(strings.TrimPrefix(s.rangeStartHex, "0x")))
	fmt.Printf("Stop :%s\n", strings.ToUpper(strings.TrimPrefix(s.rangeEndHex, "0x")))
	fmt.Printf("Keys :%d\n", len(s.keys))
	return nil
}

// pubKeyPoint converts a parsed public key to an affine Jacobian point.
func pubKeyPoint(pub *secp256k1.PublicKey) secp256k1.JacobianPoint {
	var p secp256k1.JacobianPoint
	xu, _ := u256FromBig(pub.X())
	yu, _ := u256FromBig(pub.Y())
	p.X = xu.toField()
	p.Y = yu.toField()
	p.Z.SetInt(1)
	return p
}

func pubKeyCompressedHex(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}
