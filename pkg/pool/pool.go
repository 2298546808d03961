// Package pool partitions an address range into equally sized CIDR blocks.
//
// A Pool is immutable once built: it only maps block indexes to prefixes and
// back. Which block belongs to which node is tracked by the poolstore package.
package pool

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
	"inet.af/netaddr"
)

// MaxBlockBits caps the number of blocks a pool may be split into at 2^24.
const MaxBlockBits = 24

// ConfigError reports pool parameters that cannot describe a valid partition.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pool %s %q: %s", e.Field, e.Value, e.Reason)
}

type Block struct {
	Index  uint64
	Prefix netip.Prefix
}

func (b Block) String() string {
	return b.Prefix.String()
}

type Pool struct {
	network  netip.Prefix
	ipnet    *net.IPNet
	addrBits int
	blockLen int
	count    uint64
}

// New builds a pool over network (e.g. "10.0.0.0/24"). blockSize is either a
// prefix length ("/26") or an address count ("64").
func New(network, blockSize string) (*Pool, error) {
	prefix, err := netaddr.ParseIPPrefix(strings.TrimSpace(network))
	if err != nil {
		return nil, &ConfigError{Field: "network", Value: network, Reason: err.Error()}
	}
	if prefix.Masked() != prefix {
		return nil, &ConfigError{Field: "network", Value: network, Reason: "host bits set, expected " + prefix.Masked().String()}
	}
	if prefix.IP().Is4in6() {
		return nil, &ConfigError{Field: "network", Value: network, Reason: "IPv4-mapped IPv6 range, use the IPv4 form"}
	}

	addrBits := int(prefix.IP().BitLen())
	blockLen, err := parseBlockSize(blockSize, addrBits)
	if err != nil {
		return nil, err
	}

	return NewFromPrefix(toNetip(prefix), blockLen)
}

// NewFromPrefix builds a pool of /blockLen blocks over a canonical prefix.
func NewFromPrefix(network netip.Prefix, blockLen int) (*Pool, error) {
	if !network.IsValid() {
		return nil, &ConfigError{Field: "network", Value: network.String(), Reason: "invalid prefix"}
	}
	if network.Masked() != network {
		return nil, &ConfigError{Field: "network", Value: network.String(), Reason: "host bits set"}
	}
	if network.Addr().Is4In6() {
		return nil, &ConfigError{Field: "network", Value: network.String(), Reason: "IPv4-mapped IPv6 range, use the IPv4 form"}
	}

	addrBits := network.Addr().BitLen()
	size := "/" + strconv.Itoa(blockLen)
	if blockLen <= 0 || blockLen > addrBits {
		return nil, &ConfigError{Field: "block_size", Value: size, Reason: fmt.Sprintf("must be between /1 and /%d", addrBits)}
	}

	delegBits := blockLen - network.Bits()
	if delegBits < 0 {
		return nil, &ConfigError{Field: "block_size", Value: size, Reason: "larger than the pool " + network.String()}
	}
	if delegBits > MaxBlockBits {
		return nil, &ConfigError{Field: "block_size", Value: size, Reason: fmt.Sprintf("splits %s into more than 2^%d blocks", network, MaxBlockBits)}
	}

	return &Pool{
		network: network,
		ipnet: &net.IPNet{
			IP:   net.IP(network.Addr().AsSlice()),
			Mask: net.CIDRMask(network.Bits(), addrBits),
		},
		addrBits: addrBits,
		blockLen: blockLen,
		count:    1 << uint(delegBits),
	}, nil
}

func parseBlockSize(s string, addrBits int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ConfigError{Field: "block_size", Value: s, Reason: "required"}
	}

	if strings.HasPrefix(s, "/") {
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, &ConfigError{Field: "block_size", Value: s, Reason: "invalid prefix length"}
		}
		return n, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &ConfigError{Field: "block_size", Value: s, Reason: "expected /<prefix length> or an address count"}
	}
	if n == 0 {
		return 0, &ConfigError{Field: "block_size", Value: s, Reason: "must be positive"}
	}
	if n&(n-1) != 0 {
		return 0, &ConfigError{Field: "block_size", Value: s, Reason: "does not evenly divide a CIDR range, must be a power of two"}
	}
	hostBits := bits.TrailingZeros64(n)
	if hostBits > addrBits {
		return 0, &ConfigError{Field: "block_size", Value: s, Reason: "larger than the address family"}
	}
	return addrBits - hostBits, nil
}

func toNetip(p netaddr.IPPrefix) netip.Prefix {
	addr := netip.AddrFrom16(p.IP().As16())
	if p.IP().Is4() {
		addr = addr.Unmap()
	}
	return netip.PrefixFrom(addr, int(p.Bits()))
}

func (p *Pool) Network() netip.Prefix {
	return p.network
}

func (p *Pool) BlockLen() int {
	return p.blockLen
}

func (p *Pool) Count() uint64 {
	return p.count
}

// BlockAddresses is the number of addresses in each block.
func (p *Pool) BlockAddresses() uint64 {
	first := p.Block(0)
	return cidr.AddressCount(&net.IPNet{
		IP:   net.IP(first.Prefix.Addr().AsSlice()),
		Mask: net.CIDRMask(p.blockLen, p.addrBits),
	})
}

func (p *Pool) String() string {
	return fmt.Sprintf("%s (%d x /%d)", p.network, p.count, p.blockLen)
}

// Block returns the idx-th block. idx must be below Count.
func (p *Pool) Block(idx uint64) Block {
	if idx >= p.count {
		panic(fmt.Sprintf("pool: block index %d out of range [0,%d)", idx, p.count))
	}

	subnet, err := cidr.Subnet(p.ipnet, p.blockLen-p.network.Bits(), int(idx))
	if err != nil {
		panic(fmt.Sprintf("pool: subnet %d of %s: %v", idx, p.network, err))
	}

	addr, _ := netip.AddrFromSlice(subnet.IP)
	return Block{
		Index:  idx,
		Prefix: netip.PrefixFrom(addr.Unmap(), p.blockLen),
	}
}

// IndexOf maps a block prefix back to its index. It reports false for
// prefixes of the wrong length or outside the pool.
func (p *Pool) IndexOf(prefix netip.Prefix) (uint64, bool) {
	if !prefix.IsValid() || prefix.Bits() != p.blockLen {
		return 0, false
	}

	addr := prefix.Addr().Unmap()
	if addr.BitLen() != p.addrBits || prefix.Masked() != prefix || !p.network.Contains(addr) {
		return 0, false
	}

	ab := addr.As16()
	bb := p.network.Addr().As16()

	addrHi := binary.BigEndian.Uint64(ab[:8])
	addrLo := binary.BigEndian.Uint64(ab[8:])
	baseHi := binary.BigEndian.Uint64(bb[:8])
	baseLo := binary.BigEndian.Uint64(bb[8:])

	diffLo, borrow := bits.Sub64(addrLo, baseLo, 0)
	diffHi, _ := bits.Sub64(addrHi, baseHi, borrow)

	shift := uint(p.addrBits - p.blockLen)
	var idx uint64
	switch {
	case shift >= 64:
		idx = diffHi >> (shift - 64)
	case shift == 0:
		idx = diffLo
	default:
		idx = (diffHi << (64 - shift)) | (diffLo >> shift)
	}

	if idx >= p.count {
		return 0, false
	}
	return idx, true
}

// Parse resolves a CIDR string to a block of this pool.
func (p *Pool) Parse(s string) (Block, bool) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return Block{}, false
	}
	idx, ok := p.IndexOf(prefix)
	if !ok {
		return Block{}, false
	}
	return Block{Index: idx, Prefix: prefix.Masked()}, true
}
