package core

// payload_codec.go – canonical, deterministic binary encoding.
//
// Every payload starts with a one-byte domain prefix, then a one-byte
// value-kind tag for the root value. Containers (tuple, array, map)
// recursively encode their element kind(s) and element count. Custom
// value kinds cover Reference/Own node handles, the two Decimal
// variants and NonFungibleLocalId. Decoding additionally produces the
// ordered list of owned NodeIds and the set of referenced NodeIds that
// seed the kernel's visibility checks — this is the "transfer
// set" an Invoke computes from its arguments.

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// PayloadDomain is the one-byte prefix distinguishing which depth limit
// and custom-value grammar apply to a payload.
type PayloadDomain uint8

const (
	DomainTransaction PayloadDomain = iota
	DomainScrypto
	DomainKeyValueStore
)

// DepthLimit returns the maximum nesting depth permitted for payloads of
// this domain.
func (d PayloadDomain) DepthLimit() int {
	switch d {
	case DomainTransaction:
		return 16
	case DomainKeyValueStore:
		return 32
	default:
		return 64
	}
}

// ValueKind tags every encoded value. The low kinds are standard SBOR-like
// primitives; CustomReference..CustomNonFungibleLocalId are this engine's
// custom value kinds.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindI128
	KindString
	KindBytes
	KindTuple
	KindEnum
	KindArray
	KindMap
	KindSet
	CustomReference
	CustomOwn
	CustomDecimal
	CustomPreciseDecimal
	CustomNonFungibleLocalId
)

// NonFungibleLocalIdKind distinguishes the four id encodings permitted
// for non-fungible local ids, each with a stated length limit.
type NonFungibleLocalIdKind uint8

const (
	NFLocalIdInteger NonFungibleLocalIdKind = iota
	NFLocalIdString
	NFLocalIdBytes
	NFLocalIdRUID
)

const (
	maxNFStringLen = 64
	maxNFBytesLen  = 64
	nfRUIDLen      = 32
)

// NonFungibleLocalId identifies one unit within a non-fungible resource.
type NonFungibleLocalId struct {
	Kind    NonFungibleLocalIdKind
	Integer uint64
	Str     string
	Bytes   []byte
}

func (id NonFungibleLocalId) validate() error {
	switch id.Kind {
	case NFLocalIdString:
		if len(id.Str) == 0 || len(id.Str) > maxNFStringLen {
			return fmt.Errorf("payload_codec: string local id length %d exceeds limit %d", len(id.Str), maxNFStringLen)
		}
	case NFLocalIdBytes:
		if len(id.Bytes) == 0 || len(id.Bytes) > maxNFBytesLen {
			return fmt.Errorf("payload_codec: bytes local id length %d exceeds limit %d", len(id.Bytes), maxNFBytesLen)
		}
	case NFLocalIdRUID:
		if len(id.Bytes) != nfRUIDLen {
			return fmt.Errorf("payload_codec: ruid local id must be %d bytes", nfRUIDLen)
		}
	case NFLocalIdInteger:
		// any uint64 value is valid
	default:
		return fmt.Errorf("payload_codec: unknown non-fungible local id kind %d", id.Kind)
	}
	return nil
}

func (id NonFungibleLocalId) String() string {
	switch id.Kind {
	case NFLocalIdInteger:
		return fmt.Sprintf("#%d#", id.Integer)
	case NFLocalIdString:
		return fmt.Sprintf("<%s>", id.Str)
	case NFLocalIdBytes:
		return fmt.Sprintf("[%x]", id.Bytes)
	case NFLocalIdRUID:
		return fmt.Sprintf("{%x}", id.Bytes)
	default:
		return "<invalid>"
	}
}

// ParseNonFungibleLocalId reverses String: `#n#` integer, `<s>` string,
// `[hex]` bytes, `{hex}` ruid. Used by YAML manifest fixtures and CLI
// input.
func ParseNonFungibleLocalId(s string) (NonFungibleLocalId, error) {
	if len(s) < 3 {
		return NonFungibleLocalId{}, fmt.Errorf("payload_codec: local id %q too short", s)
	}
	inner := s[1 : len(s)-1]
	var id NonFungibleLocalId
	switch {
	case s[0] == '#' && s[len(s)-1] == '#':
		n, err := strconv.ParseUint(inner, 10, 64)
		if err != nil {
			return NonFungibleLocalId{}, fmt.Errorf("payload_codec: integer local id %q: %w", s, err)
		}
		id = NonFungibleLocalId{Kind: NFLocalIdInteger, Integer: n}
	case s[0] == '<' && s[len(s)-1] == '>':
		id = NonFungibleLocalId{Kind: NFLocalIdString, Str: inner}
	case s[0] == '[' && s[len(s)-1] == ']':
		b, err := hex.DecodeString(inner)
		if err != nil {
			return NonFungibleLocalId{}, fmt.Errorf("payload_codec: bytes local id %q: %w", s, err)
		}
		id = NonFungibleLocalId{Kind: NFLocalIdBytes, Bytes: b}
	case s[0] == '{' && s[len(s)-1] == '}':
		b, err := hex.DecodeString(inner)
		if err != nil {
			return NonFungibleLocalId{}, fmt.Errorf("payload_codec: ruid local id %q: %w", s, err)
		}
		id = NonFungibleLocalId{Kind: NFLocalIdRUID, Bytes: b}
	default:
		return NonFungibleLocalId{}, fmt.Errorf("payload_codec: unrecognized local id form %q", s)
	}
	if err := id.validate(); err != nil {
		return NonFungibleLocalId{}, err
	}
	return id, nil
}

// Value is the decoded, in-memory representation of any payload. Only
// one of the fields matching Kind is populated.
type Value struct {
	Kind ValueKind

	Bool    bool
	Int     int64
	Int128  *big.Int
	Str     string
	Bytes   []byte
	Fields  []Value // Tuple / Set / Array elements
	Variant uint8   // Enum discriminant
	MapKV   []MapEntry

	Reference NodeId
	Own       NodeId
	Decimal   Decimal
	Precise   PreciseDecimal
	NFLocalId NonFungibleLocalId
}

type MapEntry struct {
	Key Value
	Val Value
}

// DecodeResult bundles a decoded Value with the visibility side-outputs
// the kernel needs: the ordered list of owned nodes (transferred) and
// the set of referenced nodes (borrowed).
type DecodeResult struct {
	Value     Value
	Owned     []NodeId
	Referenced map[NodeId]struct{}
}

// Encoder writes the canonical binary form of a Value.
type Encoder struct {
	domain PayloadDomain
	buf    []byte
}

func NewEncoder(domain PayloadDomain) *Encoder { return &Encoder{domain: domain} }

// Encode produces the full length-prefix-free payload: one domain byte
// followed by the encoded value.
func (e *Encoder) Encode(v Value) ([]byte, error) {
	e.buf = e.buf[:0]
	e.buf = append(e.buf, byte(e.domain))
	if err := e.encodeValue(v, 0); err != nil {
		return nil, err
	}
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

func (e *Encoder) encodeValue(v Value, depth int) error {
	if depth > e.domain.DepthLimit() {
		return ErrMaxDepthExceeded
	}
	e.buf = append(e.buf, byte(v.Kind))
	switch v.Kind {
	case KindBool:
		if v.Bool {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
	case KindI8:
		e.buf = append(e.buf, byte(v.Int))
	case KindI16:
		e.buf = appendUint(e.buf, uint64(v.Int), 2)
	case KindI32:
		e.buf = appendUint(e.buf, uint64(v.Int), 4)
	case KindI64:
		e.buf = appendUint(e.buf, uint64(v.Int), 8)
	case KindI128:
		b := v.Int128.Bytes()
		e.buf = appendUint(e.buf, uint64(len(b)), 4)
		e.buf = append(e.buf, b...)
	case KindString:
		e.buf = appendUint(e.buf, uint64(len(v.Str)), 4)
		e.buf = append(e.buf, v.Str...)
	case KindBytes:
		e.buf = appendUint(e.buf, uint64(len(v.Bytes)), 4)
		e.buf = append(e.buf, v.Bytes...)
	case KindTuple, KindArray:
		e.buf = appendUint(e.buf, uint64(len(v.Fields)), 4)
		for _, f := range v.Fields {
			if err := e.encodeValue(f, depth+1); err != nil {
				return err
			}
		}
	case KindSet:
		if err := checkNoDuplicates(v.Fields); err != nil {
			return err
		}
		e.buf = appendUint(e.buf, uint64(len(v.Fields)), 4)
		for _, f := range v.Fields {
			if err := e.encodeValue(f, depth+1); err != nil {
				return err
			}
		}
	case KindEnum:
		e.buf = append(e.buf, v.Variant)
		e.buf = appendUint(e.buf, uint64(len(v.Fields)), 4)
		for _, f := range v.Fields {
			if err := e.encodeValue(f, depth+1); err != nil {
				return err
			}
		}
	case KindMap:
		e.buf = appendUint(e.buf, uint64(len(v.MapKV)), 4)
		for _, kv := range v.MapKV {
			if err := e.encodeValue(kv.Key, depth+1); err != nil {
				return err
			}
			if err := e.encodeValue(kv.Val, depth+1); err != nil {
				return err
			}
		}
	case CustomReference:
		e.buf = append(e.buf, v.Reference[:]...)
	case CustomOwn:
		e.buf = append(e.buf, v.Own[:]...)
	case CustomDecimal:
		atto := v.Decimal.Atto()
		e.buf = append(e.buf, encodeSignedBigInt(atto, 24)...)
	case CustomPreciseDecimal:
		units := v.Precise.Units()
		e.buf = append(e.buf, encodeSignedBigInt(units, 32)...)
	case CustomNonFungibleLocalId:
		if err := v.NFLocalId.validate(); err != nil {
			return err
		}
		e.buf = append(e.buf, byte(v.NFLocalId.Kind))
		switch v.NFLocalId.Kind {
		case NFLocalIdInteger:
			e.buf = appendUint(e.buf, v.NFLocalId.Integer, 8)
		case NFLocalIdString:
			e.buf = append(e.buf, byte(len(v.NFLocalId.Str)))
			e.buf = append(e.buf, v.NFLocalId.Str...)
		case NFLocalIdBytes, NFLocalIdRUID:
			e.buf = append(e.buf, byte(len(v.NFLocalId.Bytes)))
			e.buf = append(e.buf, v.NFLocalId.Bytes...)
		}
	default:
		return fmt.Errorf("payload_codec: unknown value kind %d", v.Kind)
	}
	return nil
}

func checkNoDuplicates(fields []Value) error {
	seen := make(map[string]struct{}, len(fields))
	enc := NewEncoder(DomainScrypto)
	for _, f := range fields {
		b, err := enc.Encode(f)
		if err != nil {
			return err
		}
		key := string(b)
		if _, ok := seen[key]; ok {
			return ErrDuplicateSetEntry
		}
		seen[key] = struct{}{}
	}
	return nil
}

func appendUint(buf []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*uint(i))))
	}
	return buf
}

func readUint(b []byte, off, width int) (uint64, int, error) {
	if off+width > len(b) {
		return 0, off, fmt.Errorf("payload_codec: truncated input")
	}
	var v uint64
	for i := 0; i < width; i++ {
		v = (v << 8) | uint64(b[off+i])
	}
	return v, off + width, nil
}

// encodeSignedBigInt fixed-width two's-complement encodes a signed
// integer into exactly width bytes, big-endian.
func encodeSignedBigInt(v *big.Int, width int) []byte {
	out := make([]byte, width)
	if v.Sign() >= 0 {
		b := v.Bytes()
		copy(out[width-len(b):], b)
		return out
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
	twos := new(big.Int).Add(mod, v)
	b := twos.Bytes()
	copy(out[width-len(b):], b)
	return out
}

func decodeSignedBigInt(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	top := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8-1))
	if v.Cmp(top) >= 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

// Decoder reads the canonical binary form of a Value, accumulating the
// owned/referenced node sets the kernel needs for visibility checks.
type Decoder struct {
	domain     PayloadDomain
	buf        []byte
	off        int
	owned      []NodeId
	referenced map[NodeId]struct{}
}

func NewDecoder(domain PayloadDomain) *Decoder {
	return &Decoder{domain: domain, referenced: make(map[NodeId]struct{})}
}

// Decode parses a full payload (domain byte + value) and returns the
// decoded value plus its transfer set.
func (d *Decoder) Decode(payload []byte) (DecodeResult, error) {
	if len(payload) < 1 {
		return DecodeResult{}, fmt.Errorf("payload_codec: empty payload")
	}
	if PayloadDomain(payload[0]) != d.domain {
		return DecodeResult{}, fmt.Errorf("payload_codec: domain mismatch: got %d want %d", payload[0], d.domain)
	}
	d.buf = payload
	d.off = 1
	d.owned = nil
	d.referenced = make(map[NodeId]struct{})
	v, err := d.decodeValue(0)
	if err != nil {
		return DecodeResult{}, err
	}
	if d.off != len(d.buf) {
		return DecodeResult{}, fmt.Errorf("payload_codec: %d trailing bytes", len(d.buf)-d.off)
	}
	return DecodeResult{Value: v, Owned: d.owned, Referenced: d.referenced}, nil
}

func (d *Decoder) decodeValue(depth int) (Value, error) {
	if depth > d.domain.DepthLimit() {
		return Value{}, ErrMaxDepthExceeded
	}
	if d.off >= len(d.buf) {
		return Value{}, fmt.Errorf("payload_codec: truncated value kind")
	}
	kind := ValueKind(d.buf[d.off])
	d.off++
	switch kind {
	case KindBool:
		if d.off >= len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated bool")
		}
		b := d.buf[d.off] != 0
		d.off++
		return Value{Kind: kind, Bool: b}, nil
	case KindI8:
		if d.off >= len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated i8")
		}
		v := int64(int8(d.buf[d.off]))
		d.off++
		return Value{Kind: kind, Int: v}, nil
	case KindI16, KindI32, KindI64:
		width := map[ValueKind]int{KindI16: 2, KindI32: 4, KindI64: 8}[kind]
		u, off, err := readUint(d.buf, d.off, width)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		return Value{Kind: kind, Int: int64(u)}, nil
	case KindI128:
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		if d.off+int(n) > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated i128")
		}
		bi := new(big.Int).SetBytes(d.buf[d.off : d.off+int(n)])
		d.off += int(n)
		return Value{Kind: kind, Int128: bi}, nil
	case KindString:
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		if d.off+int(n) > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated string")
		}
		s := string(d.buf[d.off : d.off+int(n)])
		d.off += int(n)
		return Value{Kind: kind, Str: s}, nil
	case KindBytes:
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		if d.off+int(n) > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated bytes")
		}
		bs := append([]byte(nil), d.buf[d.off:d.off+int(n)]...)
		d.off += int(n)
		return Value{Kind: kind, Bytes: bs}, nil
	case KindTuple, KindArray, KindSet:
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		fields := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			f, err := d.decodeValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, f)
		}
		if kind == KindSet {
			if err := checkNoDuplicates(fields); err != nil {
				return Value{}, err
			}
		}
		return Value{Kind: kind, Fields: fields}, nil
	case KindEnum:
		if d.off >= len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated enum discriminant")
		}
		variant := d.buf[d.off]
		d.off++
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		fields := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			f, err := d.decodeValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, f)
		}
		return Value{Kind: kind, Variant: variant, Fields: fields}, nil
	case KindMap:
		n, off, err := readUint(d.buf, d.off, 4)
		if err != nil {
			return Value{}, err
		}
		d.off = off
		entries := make([]MapEntry, 0, n)
		for i := uint64(0); i < n; i++ {
			k, err := d.decodeValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			val, err := d.decodeValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: k, Val: val})
		}
		return Value{Kind: kind, MapKV: entries}, nil
	case CustomReference:
		if d.off+NodeIdLength > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated reference")
		}
		id, _ := NodeIdFromBytes(d.buf[d.off : d.off+NodeIdLength])
		d.off += NodeIdLength
		d.referenced[id] = struct{}{}
		return Value{Kind: kind, Reference: id}, nil
	case CustomOwn:
		if d.off+NodeIdLength > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated own")
		}
		id, _ := NodeIdFromBytes(d.buf[d.off : d.off+NodeIdLength])
		d.off += NodeIdLength
		d.owned = append(d.owned, id)
		return Value{Kind: kind, Own: id}, nil
	case CustomDecimal:
		if d.off+24 > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated decimal")
		}
		atto := decodeSignedBigInt(d.buf[d.off : d.off+24])
		d.off += 24
		return Value{Kind: kind, Decimal: DecimalFromAtto(atto)}, nil
	case CustomPreciseDecimal:
		if d.off+32 > len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated precise decimal")
		}
		units := decodeSignedBigInt(d.buf[d.off : d.off+32])
		d.off += 32
		return Value{Kind: kind, Precise: PreciseDecimalFromUnits(units)}, nil
	case CustomNonFungibleLocalId:
		if d.off >= len(d.buf) {
			return Value{}, fmt.Errorf("payload_codec: truncated nflocalid kind")
		}
		nk := NonFungibleLocalIdKind(d.buf[d.off])
		d.off++
		var id NonFungibleLocalId
		id.Kind = nk
		switch nk {
		case NFLocalIdInteger:
			u, off, err := readUint(d.buf, d.off, 8)
			if err != nil {
				return Value{}, err
			}
			d.off = off
			id.Integer = u
		case NFLocalIdString:
			if d.off >= len(d.buf) {
				return Value{}, fmt.Errorf("payload_codec: truncated nflocalid string len")
			}
			n := int(d.buf[d.off])
			d.off++
			if d.off+n > len(d.buf) {
				return Value{}, fmt.Errorf("payload_codec: truncated nflocalid string")
			}
			id.Str = string(d.buf[d.off : d.off+n])
			d.off += n
		case NFLocalIdBytes, NFLocalIdRUID:
			if d.off >= len(d.buf) {
				return Value{}, fmt.Errorf("payload_codec: truncated nflocalid bytes len")
			}
			n := int(d.buf[d.off])
			d.off++
			if d.off+n > len(d.buf) {
				return Value{}, fmt.Errorf("payload_codec: truncated nflocalid bytes")
			}
			id.Bytes = append([]byte(nil), d.buf[d.off:d.off+n]...)
			d.off += n
		default:
			return Value{}, fmt.Errorf("payload_codec: unknown nflocalid kind %d", nk)
		}
		if err := id.validate(); err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, NFLocalId: id}, nil
	default:
		return Value{}, fmt.Errorf("payload_codec: unknown value kind %d", kind)
	}
}

// SortedNonFungibleIds returns a copy of ids ordered by their string
// form, for output that must not depend on map iteration order.
func SortedNonFungibleIds(ids []NonFungibleLocalId) []NonFungibleLocalId {
	out := append([]NonFungibleLocalId(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
