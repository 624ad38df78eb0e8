package writer

import "github.com/kilnpdf/core/security"

// Config governs one serialization pass.
type Config struct {
	// PDFVersion is written as the header's "%PDF-x.y" line, e.g. "1.7".
	// Defaults to "1.7" when empty.
	PDFVersion string

	// UseObjectStreams packs non-stream objects into /Type /ObjStm
	// containers (PDF 1.5+).
	UseObjectStreams bool

	// UseXRefStreams writes a single cross-reference stream instead of a
	// classical table (PDF 1.5+). Required when UseObjectStreams is set,
	// since object-stream members have no byte offset of their own.
	UseXRefStreams bool

	// CompressStreams applies FlateDecode to content streams that were
	// added uncompressed.
	CompressStreams bool

	// Encryption, if non-nil, binds a security handler: every string and
	// stream emitted (except the /Encrypt dictionary's own fields and
	// /ID) is encrypted in place, and a fresh /Encrypt dictionary is
	// written into the trailer.
	Encryption *EncryptionConfig
}

// EncryptionConfig describes the security handler to install on a
// freshly written document.
type EncryptionConfig struct {
	UserPassword  string
	OwnerPassword string
	Algorithm     security.Algorithm
	Permissions   security.Permissions
	// Revision selects the /R value; 0 picks a default revision for
	// Algorithm (2 for RC4-40, 3 for RC4-128, 4 for AES-128, 6 for
	// AES-256).
	Revision int
}

func (c *Config) pdfVersion() string {
	if c.PDFVersion == "" {
		return "1.7"
	}
	return c.PDFVersion
}

func (ec *EncryptionConfig) revision() int {
	if ec.Revision != 0 {
		return ec.Revision
	}
	switch ec.Algorithm {
	case security.RC4_40:
		return 2
	case security.RC4_128:
		return 3
	case security.AES128:
		return 4
	default:
		return 6
	}
}
