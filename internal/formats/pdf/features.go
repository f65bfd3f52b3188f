package pdf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// window bounds how far from either end the header and trailer may appear.
const window = 1024

// Permission bits of the /P entry, ISO 32000-1 table 22.
const (
	permPrint  = 1 << 2
	permModify = 1 << 3
	permCopy   = 1 << 4
)

var disableConfigDir sync.Once

// newConfiguration returns a pdfcpu configuration that never touches the
// user's config directory.
func newConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.VALIDATE
	return conf
}

type flag struct {
	Valid bool `xml:"valid,attr"`
}

type count struct {
	Count int `xml:"count,attr"`
}

// Encryption describes the encryption dictionary of a document.
type Encryption struct {
	Present     bool   `xml:"present,attr"`
	Filter      string `xml:"filter,attr,omitempty"`
	V           int    `xml:"v,attr,omitempty"`
	R           int    `xml:"r,attr,omitempty"`
	Length      int    `xml:"length,attr,omitempty"`
	Permissions int    `xml:"permissions,attr"`
	Print       bool   `xml:"print,attr"`
	Copy        bool   `xml:"copy,attr"`
	Modify      bool   `xml:"modify,attr"`
	// Mentioned is set when "/encrypt" appears anywhere, in any case.
	Mentioned bool `xml:"mentioned,attr"`
}

// Features are the structural properties the PDF policy is evaluated against.
type Features struct {
	XMLName    xml.Name   `xml:"pdf"`
	Version    string     `xml:"version,attr"`
	Size       int        `xml:"size,attr"`
	Header     flag       `xml:"header"`
	Trailer    flag       `xml:"trailer"`
	Xref       flag       `xml:"xref"`
	Structure  flag       `xml:"structure"`
	Encryption Encryption `xml:"encryption"`
	Objects    count      `xml:"objects"`
	Streams    count      `xml:"streams"`
	Pages      count      `xml:"pages"`
	Fonts      count      `xml:"fonts"`
	JavaScript count      `xml:"javascript"`
	Embedded   count      `xml:"embeddedFiles"`
	Updates    count      `xml:"incrementalUpdates"`
	// ReadError is why pdfcpu could not read the document, if it could not.
	ReadError string `xml:"readError,attr,omitempty"`
}

// Extract reads the document with pdfcpu. It never fails: anything that
// cannot be read is reported as absent or invalid.
func Extract(data []byte) *Features {
	f := &Features{Size: len(data)}
	f.Version, f.Header.Valid = headerVersion(data)
	f.Trailer.Valid = bytes.Contains(data[max(0, len(data)-window):], []byte("%%EOF"))
	f.Updates.Count = bytes.Count(data, []byte("%%EOF"))
	mentioned := bytes.Contains(bytes.ToLower(data), []byte("/encrypt"))

	ctx, err := readContext(data)
	if err != nil {
		f.ReadError = err.Error()
		f.Encryption = unreadableEncryption(mentioned)
		return f
	}
	f.Xref.Valid = true
	f.Structure.Valid = api.ValidateContext(ctx) == nil
	if ctx.HeaderVersion != nil {
		f.Version = ctx.HeaderVersion.String()
	}
	if err := ctx.EnsurePageCount(); err == nil {
		f.Pages.Count = ctx.PageCount
	}
	f.Encryption = contextEncryption(ctx)
	f.Encryption.Mentioned = mentioned
	f.countObjects(ctx)
	return f
}

// readContext parses the xref table or streams, the trailer and every object,
// decrypting with the empty user password when the document is encrypted.
func readContext(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if v := recover(); v != nil {
			ctx, err = nil, &readPanic{v}
		}
	}()
	return api.ReadContext(bytes.NewReader(data), newConfiguration())
}

type readPanic struct{ v any }

func (p *readPanic) Error() string { return fmt.Sprintf("pdfcpu: unreadable document: %v", p.v) }

// headerVersion finds "%PDF-x.y" near the start of the file.
func headerVersion(data []byte) (string, bool) {
	head := data[:min(len(data), window)]
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 || i+8 > len(head) {
		return "", false
	}
	v := head[i+5 : i+8]
	if v[0] < '0' || v[0] > '9' || v[1] != '.' || v[2] < '0' || v[2] > '9' {
		return "", false
	}
	return string(v), true
}

// unreadableEncryption describes a document pdfcpu could not open. When it
// mentions /Encrypt, the security handler is treated as unknown and restrictive.
func unreadableEncryption(mentioned bool) Encryption {
	if mentioned {
		return Encryption{Present: true, Mentioned: true}
	}
	return Encryption{Print: true, Copy: true, Modify: true, Permissions: -1}
}

func contextEncryption(ctx *model.Context) Encryption {
	enc := Encryption{Print: true, Copy: true, Modify: true, Permissions: -1}
	if ctx.Encrypt == nil && ctx.E == nil {
		return enc
	}
	enc.Present = true
	// pdfcpu only opens documents of the standard security handler.
	enc.Filter = "Standard"
	if ctx.Encrypt != nil {
		if d, err := ctx.DereferenceDict(*ctx.Encrypt); err == nil && d != nil {
			if name := d.NameEntry("Filter"); name != nil {
				enc.Filter = *name
			}
		}
	}
	if e := ctx.E; e != nil {
		enc.V, enc.R, enc.Length = e.V, e.R, e.L
		enc.Permissions = e.P
		enc.Print = e.P&permPrint != 0
		enc.Modify = e.P&permModify != 0
		enc.Copy = e.P&permCopy != 0
	}
	return enc
}

// countObjects walks every object of the xref table, including those held in
// object streams.
func (f *Features) countObjects(ctx *model.Context) {
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		f.Objects.Count++
		switch o := entry.Object.(type) {
		case types.Dict:
			f.inspect(o)
		case types.StreamDict:
			f.Streams.Count++
			f.inspect(o.Dict)
		}
	}
}

func (f *Features) inspect(d types.Dict) {
	if t := d.Type(); t != nil {
		switch *t {
		case "Font":
			f.Fonts.Count++
		case "EmbeddedFile":
			f.Embedded.Count++
		}
	}
	if s := d.NameEntry("S"); s != nil && *s == "JavaScript" {
		f.JavaScript.Count++
		return
	}
	for key := range d {
		if key == "JS" || strings.EqualFold(key, "JavaScript") {
			f.JavaScript.Count++
			return
		}
	}
}

// XML renders the features as the document the policy is evaluated against.
func (f *Features) XML() ([]byte, error) {
	return xml.Marshal(f)
}
