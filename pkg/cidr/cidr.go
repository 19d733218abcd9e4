package cidr

import (
	"errors"
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalid is matched by every error returned from Parse and FromMask.
var ErrInvalid = errors.New("cidr: invalid IPv4 network")

var cidrPattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})/(\d{1,2})$`)

// ValidationError describes why an input could not be parsed.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("invalid cidr %q: %s", e.Input, e.Reason)
}

// Is lets errors.Is(err, ErrInvalid) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Network is the parsed form of an IPv4 CIDR.
type Network struct {
	// CIDR is the canonical "address/prefix" form with host bits cleared.
	CIDR    string
	Address string
	Mask    string
	Prefix  int
}

// Parse validates an IPv4 CIDR such as "192.168.1.0/24" and derives its network
// address and dotted-quad subnet mask. Host bits in the input are cleared.
func Parse(text string) (Network, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return Network{}, invalid(text, "value is empty")
	}
	if !strings.Contains(input, "/") {
		return Network{}, invalid(text, "missing prefix length")
	}

	match := cidrPattern.FindStringSubmatch(input)
	if match == nil {
		return Network{}, invalid(text, "expected four dotted octets followed by /prefix")
	}

	var addr uint32
	for i := 1; i <= 4; i++ {
		octet, err := strconv.Atoi(match[i])
		if err != nil || octet > 255 {
			return Network{}, invalid(text, fmt.Sprintf("octet %d out of range 0-255", i))
		}
		addr = addr<<8 | uint32(octet)
	}

	prefix, err := strconv.Atoi(match[5])
	if err != nil || prefix > 32 {
		return Network{}, invalid(text, "prefix length out of range 0-32")
	}

	mask := prefixMask(prefix)
	network := addr & mask

	return Network{
		CIDR:    fmt.Sprintf("%s/%d", formatIPv4(network), prefix),
		Address: formatIPv4(network),
		Mask:    formatIPv4(mask),
		Prefix:  prefix,
	}, nil
}

// MaskFromPrefix renders the dotted-quad mask for a prefix length.
func MaskFromPrefix(prefix int) (string, error) {
	if prefix < 0 || prefix > 32 {
		return "", invalid(strconv.Itoa(prefix), "prefix length out of range 0-32")
	}
	return formatIPv4(prefixMask(prefix)), nil
}

// FromMask rebuilds the CIDR notation from a stored network address and subnet mask.
func FromMask(address, mask string) (string, error) {
	addr, err := parseIPv4(address)
	if err != nil {
		return "", invalid(address, err.Error())
	}
	m, err := parseIPv4(mask)
	if err != nil {
		return "", invalid(mask, err.Error())
	}

	prefix := bits.OnesCount32(m)
	if prefixMask(prefix) != m {
		return "", invalid(mask, "subnet mask is not contiguous")
	}

	return fmt.Sprintf("%s/%d", formatIPv4(addr&m), prefix), nil
}

func prefixMask(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefix)
}

func parseIPv4(value string) (uint32, error) {
	parts := strings.Split(strings.TrimSpace(value), ".")
	if len(parts) != 4 {
		return 0, errors.New("expected four dotted octets")
	}
	var out uint32
	for i, part := range parts {
		if part == "" || len(part) > 3 {
			return 0, fmt.Errorf("octet %d is malformed", i+1)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("octet %d out of range 0-255", i+1)
		}
		out = out<<8 | uint32(n)
	}
	return out, nil
}

func formatIPv4(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func invalid(input, reason string) error {
	return &ValidationError{Input: input, Reason: reason}
}
