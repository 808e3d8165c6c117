package attestation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"holderguard/engine/library"
	"holderguard/state/identity"
)

// ErrMalformedDocument is returned when a verification document does not parse.
var ErrMalformedDocument = errors.New("malformed verification document")

// Format identifies which of the document layouts was parsed.
type Format int

const (
	// LegacyWithoutSalt is type,hash,timestamp,address.
	LegacyWithoutSalt Format = iota + 1
	// LegacyWithoutOperation is type,hash,timestamp,address,salt.
	LegacyWithoutOperation
	// Qualified is type,hash,timestamp,address,salt,operation,chain[,details].
	Qualified
)

func (f Format) String() string {
	switch f {
	case LegacyWithoutSalt:
		return "legacy-without-salt"
	case LegacyWithoutOperation:
		return "legacy-without-operation"
	case Qualified:
		return "qualified"
	}
	return "unknown"
}

// Document is a parsed verification document. Raw holds the exact bytes that
// were signed.
type Document struct {
	Format          Format
	IdentityType    identity.Type
	IdentifierHash  library.Sha256
	Timestamp       int64
	VerifierAddress string
	Salt            string
	Operation       Operation
	ChainID         library.ChainID
	DetailsHash     library.Sha256
	Raw             string
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

// ParseDocument parses any of the three document layouts.
func ParseDocument(raw string) (d Document, err error) {
	fields := strings.Split(raw, ",")
	switch len(fields) {
	case 4:
		d.Format = LegacyWithoutSalt
	case 5:
		d.Format = LegacyWithoutOperation
	case 7, 8:
		d.Format = Qualified
	default:
		return d, malformed("%d fields", len(fields))
	}
	d.Raw = raw
	t, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil || !identity.Type(t).Valid() {
		return d, malformed("identity type %q", fields[0])
	}
	d.IdentityType = identity.Type(t)
	if d.IdentifierHash = fields[1]; !library.IsSha256(d.IdentifierHash) {
		return d, malformed("identifier hash %q", fields[1])
	}
	if d.Timestamp, err = strconv.ParseInt(fields[2], 10, 64); err != nil || d.Timestamp <= 0 {
		return d, malformed("timestamp %q", fields[2])
	}
	if d.VerifierAddress = fields[3]; !library.IsValidAddress(d.VerifierAddress) {
		return d, malformed("verifier address %q", fields[3])
	}
	if d.Format == LegacyWithoutSalt {
		return d, nil
	}
	if d.Salt = fields[4]; len(d.Salt) == 0 {
		return d, malformed("empty salt")
	}
	if d.Format == LegacyWithoutOperation {
		return d, nil
	}
	op, err := strconv.ParseInt(fields[5], 10, 32)
	if err != nil || !Operation(op).Valid() {
		return d, malformed("operation %q", fields[5])
	}
	d.Operation = Operation(op)
	if d.ChainID, err = strconv.ParseInt(fields[6], 10, 64); err != nil {
		return d, malformed("chain id %q", fields[6])
	}
	if len(fields) == 8 {
		if d.DetailsHash = fields[7]; !library.IsSha256(d.DetailsHash) {
			return d, malformed("operation details hash %q", fields[7])
		}
	}
	return d, nil
}

// String renders d in its layout. For a parsed document this equals Raw.
func (d Document) String() string {
	fields := []string{
		strconv.Itoa(int(d.IdentityType)),
		d.IdentifierHash,
		strconv.FormatInt(d.Timestamp, 10),
		d.VerifierAddress,
	}
	if d.Format == LegacyWithoutSalt {
		return strings.Join(fields, ",")
	}
	fields = append(fields, d.Salt)
	if d.Format == LegacyWithoutOperation {
		return strings.Join(fields, ",")
	}
	fields = append(fields, strconv.Itoa(int(d.Operation)), strconv.FormatInt(d.ChainID, 10))
	if len(d.DetailsHash) > 0 {
		fields = append(fields, d.DetailsHash)
	}
	return strings.Join(fields, ",")
}

// DetailsHash hashes the canonical details of an operation, the parts joined
// by commas.
func DetailsHash(parts ...string) library.Sha256 {
	return library.Sha256Sum(strings.Join(parts, ","))
}
