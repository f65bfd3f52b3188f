package mobi

import (
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Layout of the Palm database and MOBI headers.
const (
	palmHeaderSize = 78
	palmTypeOffset = 60
	palmCreator    = 64
	palmNumRecords = 76
	recordEntry    = 8
	maxRecordSize  = 64 * 1024

	encryptionOffset = 12
	identOffset      = 16
	headerLenOffset  = 20
	mobiTypeOffset   = 24
	encodingOffset   = 28
	versionOffset    = 36
	fullNameOffset   = 84
	fullNameLength   = 88
	drmOffsetOffset  = 168

	// NoDRMOffset marks the absence of a DRM block.
	NoDRMOffset = 0xFFFFFFFF
)

// ErrNotMobi is returned for files without a BOOK/MOBI Palm database header.
var ErrNotMobi = errors.New("not a mobipocket book")

// Header is record 0 of a MOBI book: the PalmDOC header followed by the MOBI header.
type Header struct {
	XMLName      xml.Name `xml:"mobiHeader"`
	Compression  uint16   `xml:"compression,attr"`
	TextLength   uint32   `xml:"textLength,attr"`
	Encryption   uint16   `xml:"encryption,attr"`
	Identifier   string   `xml:"identifier,attr"`
	HeaderLength uint32   `xml:"headerLength,attr"`
	MobiType     uint32   `xml:"mobiType,attr"`
	TextEncoding uint32   `xml:"textEncoding,attr"`
	FileVersion  uint32   `xml:"fileVersion,attr"`
	FullName     string   `xml:"fullName,attr"`
	DRMOffset    uint32   `xml:"drmOffset,attr"`
}

// HasDRM reports an encrypted text or a DRM block.
func (h *Header) HasDRM() bool {
	return h.Encryption > 0 || h.DRMOffset != NoDRMOffset
}

// Book is the parsed structure of a MOBI file.
type Book struct {
	XMLName    xml.Name `xml:"mobi"`
	Type       string   `xml:"type,attr"`
	Creator    string   `xml:"creator,attr"`
	NumRecords uint16   `xml:"records,attr"`
	Header     *Header  `xml:"mobiHeader"`
}

// IsMobi reports whether the Palm database declares a MOBI book.
func (b *Book) IsMobi() bool {
	return strings.EqualFold(b.Type, "BOOK") && strings.EqualFold(b.Creator, "MOBI")
}

// XML renders the book as the document the policy is evaluated against.
func (b *Book) XML() ([]byte, error) {
	return xml.Marshal(b)
}

// Open reads the headers of a MOBI file.
func Open(file string) (*Book, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(io.NewSectionReader(f, 0, st.Size()))
}

// sizer is implemented by readers that know their length, such as
// *bytes.Reader and *io.SectionReader.
type sizer interface {
	Size() int64
}

// Read parses the Palm database header, the record list and record 0.
// Record 0 must fit in one Palm record and, when r reports its size, in the file.
func Read(r io.ReaderAt) (*Book, error) {
	palm := make([]byte, palmHeaderSize)
	if _, err := r.ReadAt(palm, 0); err != nil {
		return nil, fmt.Errorf("%w: short palm database header: %w", ErrNotMobi, err)
	}
	b := &Book{
		Type:       string(palm[palmTypeOffset : palmTypeOffset+4]),
		Creator:    string(palm[palmCreator : palmCreator+4]),
		NumRecords: binary.BigEndian.Uint16(palm[palmNumRecords:]),
	}
	if !b.IsMobi() || b.NumRecords < 2 {
		return b, fmt.Errorf("%w: type %q creator %q records %d", ErrNotMobi, b.Type, b.Creator, b.NumRecords)
	}

	dir := make([]byte, recordEntry*2)
	if _, err := r.ReadAt(dir, palmHeaderSize); err != nil {
		return b, fmt.Errorf("record list: %w", err)
	}
	start := int64(binary.BigEndian.Uint32(dir[0:]))
	end := int64(binary.BigEndian.Uint32(dir[recordEntry:]))
	if end <= start || end-start > maxRecordSize {
		return b, fmt.Errorf("record 0 has invalid bounds %d..%d", start, end)
	}
	if sr, ok := r.(sizer); ok && end > sr.Size() {
		return b, fmt.Errorf("record 0 ends at %d past the end of the file (%d bytes)", end, sr.Size())
	}

	rec := make([]byte, end-start)
	n, err := r.ReadAt(rec, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return b, fmt.Errorf("record 0: %w", err)
	}
	h, err := parseHeader(rec[:n])
	if err != nil {
		return b, err
	}
	b.Header = h
	return b, nil
}

func parseHeader(rec []byte) (*Header, error) {
	if len(rec) < headerLenOffset+4 {
		return nil, fmt.Errorf("record 0 too short: %d bytes", len(rec))
	}
	h := &Header{
		Compression:  binary.BigEndian.Uint16(rec[0:]),
		TextLength:   binary.BigEndian.Uint32(rec[4:]),
		Encryption:   binary.BigEndian.Uint16(rec[encryptionOffset:]),
		Identifier:   string(rec[identOffset : identOffset+4]),
		HeaderLength: binary.BigEndian.Uint32(rec[headerLenOffset:]),
		DRMOffset:    NoDRMOffset,
	}
	if !strings.EqualFold(h.Identifier, "MOBI") {
		return nil, fmt.Errorf("%w: record 0 identifier %q", ErrNotMobi, h.Identifier)
	}
	u32 := func(off int) (uint32, bool) {
		if off+4 > len(rec) {
			return 0, false
		}
		return binary.BigEndian.Uint32(rec[off:]), true
	}
	h.MobiType, _ = u32(mobiTypeOffset)
	h.TextEncoding, _ = u32(encodingOffset)
	h.FileVersion, _ = u32(versionOffset)
	if v, ok := u32(drmOffsetOffset); ok {
		h.DRMOffset = v
	}

	off, okOff := u32(fullNameOffset)
	n, okLen := u32(fullNameLength)
	if okOff && okLen && int(off)+int(n) <= len(rec) {
		name := rec[off : off+n]
		if h.TextEncoding == 1252 {
			h.FullName = latin1(name)
		} else {
			h.FullName = strings.ToValidUTF8(string(name), "")
		}
	}
	return h, nil
}

// latin1 decodes cp1252 as ISO-8859-1, which agrees on every printable ASCII byte.
func latin1(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}
