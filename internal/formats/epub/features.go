package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Well-known entries of the OCF container.
const (
	MimetypeEntry   = "mimetype"
	ContainerEntry  = "META-INF/container.xml"
	RightsEntry     = "META-INF/rights.xml"
	EncryptionEntry = "META-INF/encryption.xml"

	epubMimetype = "application/epub+zip"
)

// Mimetype describes the mimetype entry.
type Mimetype struct {
	Present bool   `xml:"present,attr"`
	First   bool   `xml:"first,attr"`
	Stored  bool   `xml:"stored,attr"`
	Value   string `xml:"value,attr"`
}

// Container describes META-INF/container.xml.
type Container struct {
	Present   bool `xml:"present,attr"`
	Rootfiles int  `xml:"rootfiles,attr"`
}

// Package describes the package document the container points to.
type Package struct {
	Present      bool   `xml:"present,attr"`
	Path         string `xml:"path,attr"`
	Version      string `xml:"version,attr"`
	Title        string `xml:"title,attr"`
	Language     string `xml:"language,attr"`
	Identifier   string `xml:"identifier,attr"`
	ManifestSize int    `xml:"manifestItems,attr"`
	SpineItems   int    `xml:"spineItems,attr"`
	MissingItems int    `xml:"missingItems,attr"`
}

// Encryption describes META-INF/encryption.xml.
type Encryption struct {
	Present            bool   `xml:"present,attr"`
	EncryptedResources int    `xml:"encryptedResources,attr"`
	Algorithms         string `xml:"algorithms,attr,omitempty"`
}

// Features are the container properties the EPUB policy is evaluated against.
type Features struct {
	XMLName    xml.Name   `xml:"epub"`
	Entries    int        `xml:"entries,attr"`
	Mimetype   Mimetype   `xml:"mimetype"`
	Container  Container  `xml:"container"`
	Package    Package    `xml:"package"`
	Encryption Encryption `xml:"encryption"`
	Rights     struct {
		Present bool `xml:"present,attr"`
	} `xml:"rights"`
}

// XML renders the features as the document the policy is evaluated against.
func (f *Features) XML() ([]byte, error) {
	return xml.Marshal(f)
}

// Open extracts the features of an EPUB file. It fails only when the file is
// not a readable zip archive.
func Open(file string) (*Features, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() { _ = zr.Close() }()
	return Extract(&zr.Reader), nil
}

// Extract reads the features from an open archive.
func Extract(zr *zip.Reader) *Features {
	f := &Features{Entries: len(zr.File)}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, e := range zr.File {
		entries[e.Name] = e
	}

	if e, ok := entries[MimetypeEntry]; ok {
		f.Mimetype.Present = true
		f.Mimetype.First = zr.File[0] == e
		f.Mimetype.Stored = e.Method == zip.Store
		if data, err := readEntry(e, 256); err == nil {
			f.Mimetype.Value = strings.TrimSpace(string(data))
		}
	}

	_, f.Rights.Present = entries[RightsEntry]
	if e, ok := entries[EncryptionEntry]; ok {
		f.Encryption = encryptionOf(e)
	}

	e, ok := entries[ContainerEntry]
	if !ok {
		return f
	}
	doc, err := parseEntry(e)
	if err != nil {
		return f
	}
	f.Container.Present = true
	rootfiles := xmlquery.Find(doc, "//*[local-name()='rootfile']")
	f.Container.Rootfiles = len(rootfiles)
	if len(rootfiles) == 0 {
		return f
	}
	f.Package.Path = rootfiles[0].SelectAttr("full-path")
	if opf, ok := entries[f.Package.Path]; ok {
		f.Package = packageOf(opf, f.Package.Path, entries)
	}
	return f
}

func readEntry(e *zip.File, limit int64) ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(io.LimitReader(rc, limit))
}

func parseEntry(e *zip.File) (*xmlquery.Node, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return xmlquery.Parse(rc)
}

func encryptionOf(e *zip.File) Encryption {
	enc := Encryption{Present: true}
	doc, err := parseEntry(e)
	if err != nil {
		// An unreadable encryption.xml is treated as encrypting something.
		enc.EncryptedResources = 1
		return enc
	}
	enc.EncryptedResources = len(xmlquery.Find(doc, "//*[local-name()='EncryptedData']"))
	seen := map[string]bool{}
	var algs []string
	for _, n := range xmlquery.Find(doc, "//*[local-name()='EncryptionMethod']") {
		if a := n.SelectAttr("Algorithm"); a != "" && !seen[a] {
			seen[a] = true
			algs = append(algs, a)
		}
	}
	enc.Algorithms = strings.Join(algs, " ")
	return enc
}

func packageOf(e *zip.File, opfPath string, entries map[string]*zip.File) Package {
	p := Package{Path: opfPath}
	doc, err := parseEntry(e)
	if err != nil {
		return p
	}
	root := xmlquery.FindOne(doc, "/*[local-name()='package']")
	if root == nil {
		return p
	}
	p.Present = true
	p.Version = root.SelectAttr("version")
	p.Title = text(doc, "//*[local-name()='metadata']/*[local-name()='title']")
	p.Language = text(doc, "//*[local-name()='metadata']/*[local-name()='language']")
	p.Identifier = text(doc, "//*[local-name()='metadata']/*[local-name()='identifier']")

	base := path.Dir(opfPath)
	items := xmlquery.Find(doc, "//*[local-name()='manifest']/*[local-name()='item']")
	p.ManifestSize = len(items)
	for _, item := range items {
		href := item.SelectAttr("href")
		if href == "" {
			continue
		}
		if i := strings.IndexAny(href, "#?"); i >= 0 {
			href = href[:i]
		}
		if strings.Contains(href, "://") {
			continue
		}
		if _, ok := entries[path.Clean(path.Join(base, href))]; !ok {
			p.MissingItems++
		}
	}
	p.SpineItems = len(xmlquery.Find(doc, "//*[local-name()='spine']/*[local-name()='itemref']"))
	return p
}

func text(doc *xmlquery.Node, expr string) string {
	n := xmlquery.FindOne(doc, expr)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}
