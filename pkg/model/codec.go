package model

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// versionAttrExpr is compiled once and reused by every Read call.
var versionAttrExpr = xpath.MustCompile("/Model/@version")

// Write marshals doc as an indented, versioned XML document and writes it
// to path.
func Write(path string, doc *Document) error {
	doc.Version = ModelVersion

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	buf.WriteByte('\n')

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Read loads and decodes the topology model at path. Before paying for the
// full structural decode, it XPath-queries the root element's version
// attribute and rejects a mismatch as a fatal load error.
func Read(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	if err := checkVersion(content); err != nil {
		return nil, err
	}

	var doc Document
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &doc, nil
}

// checkVersion rejects a model document whose declared version does not
// match ModelVersion, without running the full encoding/xml decode.
func checkVersion(content []byte) error {
	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("parse model for version check: %w", err)
	}

	attr := xmlquery.QuerySelector(doc, versionAttrExpr)
	if attr == nil {
		return fmt.Errorf("model file has no root <Model> version attribute")
	}
	version := attr.InnerText()
	if version == "" {
		return fmt.Errorf("model file has no version attribute")
	}
	if version != ModelVersion {
		return fmt.Errorf("unsupported model schema version %q, expected %q", version, ModelVersion)
	}
	return nil
}
