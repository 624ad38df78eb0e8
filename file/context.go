// Package file resolves a PDF byte stream's cross-reference structure
// into an addressable object store: it locates and merges xref tables
// (classical, stream-based, and hybrid), follows the /Prev chain for
// incrementally updated and linearized files, decodes object streams,
// and falls back to a recovery scan when the structure is damaged.
package file

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/security"
)

// Configuration controls how a document is opened.
type Configuration struct {
	// Password is tried as both the user and owner password, in that
	// order, against an /Encrypt dictionary, if present.
	Password string

	// Lenient enables the tokenizer/parser's own best-effort recovery
	// (stray-byte tolerance, unterminated-string recovery) in addition
	// to this package's xref-level recovery scan.
	Lenient bool
}

// NewDefaultConfiguration returns a strict, unauthenticated configuration.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{}
}

// xrefEntry records where one object's bytes live: either a direct byte
// offset in the file, or an index into an already-located object stream.
type xrefEntry struct {
	free       bool
	generation uint16

	offset int64 // valid when inStream == nil

	inStream *parser.ObjectStreamRef
}

type xRefTable struct {
	entries map[uint32]xrefEntry
	// objectStreams caches decoded object streams by their container's
	// object number.
	objectStreams map[uint32][]parser.IndirectObject
}

func newXRefTable() *xRefTable {
	return &xRefTable{
		entries:       map[uint32]xrefEntry{},
		objectStreams: map[uint32][]parser.IndirectObject{},
	}
}

// trailer merges the fields carried by every xref section visited while
// walking the /Prev chain; later (more recent) sections' non-empty
// fields win, except that /Prev is followed from whichever section it
// is read from, never re-merged.
type trailer struct {
	root    *parser.Reference
	info    *parser.Reference
	id0     []byte
	encrypt parser.Object // usually a parser.Reference or an inline parser.Dict
	sawRoot bool
}

// context is one opened document: its byte source, the merged xref
// table, decrypt handler (if any), and a log of non-fatal problems
// encountered while opening.
type context struct {
	rs       io.ReadSeeker
	fileSize int64
	conf     *Configuration

	xref    *xRefTable
	trailer trailer

	enc *security.Handler

	startXRefOffset int64

	// HeaderVersion is the "x.y" read from the "%PDF-x.y" header line.
	HeaderVersion string

	// objectCache holds every direct (non-compressed) object this
	// context has parsed, keyed by object number, so a second resolve of
	// the same reference is O(1) instead of re-reading and re-parsing
	// from disk.
	objectCache map[uint32]parser.Object

	Warnings []string
}

func (ctx *context) warn(format string, args ...interface{}) {
	ctx.Warnings = append(ctx.Warnings, fmt.Sprintf(format, args...))
}

func newContext(rs io.ReadSeeker, conf *Configuration) (*context, error) {
	if conf == nil {
		conf = NewDefaultConfiguration()
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, perr.New(perr.IoFailure, "file.newContext", err)
	}
	return &context{rs: rs, fileSize: size, conf: conf, xref: newXRefTable(), objectCache: map[uint32]parser.Object{}}, nil
}

// readAt reads exactly n bytes starting at offset.
func (ctx *context) readAt(offset, n int64) ([]byte, error) {
	if _, err := ctx.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, perr.New(perr.IoFailure, "file.readAt", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(ctx.rs, buf); err != nil {
		return nil, perr.New(perr.IoFailure, "file.readAt", err)
	}
	return buf, nil
}

// bufReaderAt returns a buffered reader positioned at offset, suitable
// for handing to a tokenizer/parser.
func (ctx *context) bufReaderAt(offset int64) (*bufio.Reader, error) {
	if _, err := ctx.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, perr.New(perr.IoFailure, "file.bufReaderAt", err)
	}
	return bufio.NewReader(ctx.rs), nil
}

// Document is the externally visible result of opening a PDF: a
// resolvable object store plus the trailer's well-known entries.
type Document struct {
	ctx *context

	HeaderVersion string
	Root          parser.Reference
	Info          *parser.Reference
	ID0           []byte
	Encrypted     bool
	Warnings      []string

	// StartXRefOffset is the byte offset named by the file's own
	// "startxref" keyword, i.e. where the most recent xref section
	// begins. An incremental update's appended trailer sets its /Prev to
	// this value. Zero when the document was opened through recovery and
	// no startxref could be trusted.
	StartXRefOffset int64
}

// OpenStrict opens rs, failing on any structural error rather than
// attempting recovery.
func OpenStrict(rs io.ReadSeeker, conf *Configuration) (*Document, error) {
	return open(rs, conf, false)
}

// OpenLenient opens rs, falling back to a full recovery scan (rebuilding
// the xref table from "N G obj" markers) whenever the normal xref path
// fails.
func OpenLenient(rs io.ReadSeeker, conf *Configuration) (*Document, error) {
	if conf == nil {
		conf = NewDefaultConfiguration()
	}
	conf.Lenient = true
	return open(rs, conf, true)
}

func open(rs io.ReadSeeker, conf *Configuration, allowRecovery bool) (*Document, error) {
	ctx, err := newContext(rs, conf)
	if err != nil {
		return nil, err
	}

	ctx.HeaderVersion, err = readHeaderVersion(ctx)
	if err != nil {
		if !allowRecovery {
			return nil, err
		}
		ctx.warn("could not read header version: %s", err)
		ctx.HeaderVersion = "1.7"
	}

	if err := ctx.buildXRefTable(); err != nil {
		if !allowRecovery {
			return nil, err
		}
		ctx.warn("normal xref resolution failed (%s); falling back to recovery scan", err)
		ctx.startXRefOffset = 0
		if rerr := ctx.recover(); rerr != nil {
			return nil, perr.New(perr.RecoveryExhausted, "file.Open", rerr)
		}
	}

	if !ctx.trailer.sawRoot {
		if !allowRecovery {
			return nil, perr.New(perr.XRefError, "file.Open", fmt.Errorf("missing /Root entry"))
		}
		if err := ctx.recoverRootFromScan(); err != nil {
			return nil, perr.New(perr.RecoveryExhausted, "file.Open", err)
		}
	}

	if err := ctx.setupEncryption(); err != nil {
		return nil, err
	}

	doc := &Document{
		ctx:           ctx,
		HeaderVersion: ctx.HeaderVersion,
		Root:          *ctx.trailer.root,
		Info:          ctx.trailer.info,
		ID0:           ctx.trailer.id0,
		Encrypted:     ctx.enc != nil,
		Warnings:      ctx.Warnings,

		StartXRefOffset: ctx.startXRefOffset,
	}
	return doc, nil
}

func readHeaderVersion(ctx *context) (string, error) {
	buf, err := ctx.readAt(0, minInt64(1024, ctx.fileSize))
	if err != nil {
		return "", perr.New(perr.ParseError, "file.readHeaderVersion", err)
	}
	const marker = "%PDF-"
	idx := indexOf(buf, []byte(marker))
	if idx < 0 {
		return "", perr.New(perr.ParseError, "file.readHeaderVersion", fmt.Errorf("missing %q header", marker))
	}
	start := idx + len(marker)
	end := start
	for end < len(buf) && buf[end] != '\r' && buf[end] != '\n' && end-start < 4 {
		end++
	}
	return string(buf[start:end]), nil
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
