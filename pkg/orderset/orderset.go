// Package orderset implements the external order-intake wire format: an
// ordered list of Transport entries, each naming an intended vehicle and
// an ordered list of Destinations, marshalled to and from a canonically
// round-trippable XML document using struct tags. This format carries no
// schema version (unlike the topology model, it has no evolving-schema
// concern), so it has no version gate.
package orderset

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
)

// TCSOrderSet is the root document: an ordered batch of transport orders
// to submit to the kernel.
type TCSOrderSet struct {
	XMLName    xml.Name    `xml:"TCSOrderSet"`
	Transports []Transport `xml:"Transport"`
}

// Transport is one order-intake entry. Name is optional; the kernel
// generates one if absent. DeadlineMillis is milliseconds since the Unix
// epoch, zero meaning no deadline.
type Transport struct {
	Name            string        `xml:"name,attr,omitempty"`
	DeadlineMillis  int64         `xml:"deadline,attr,omitempty"`
	IntendedVehicle string        `xml:"intendedVehicle,attr,omitempty"`
	Destinations    []Destination `xml:"Destination"`
	Script          *TransportScript `xml:"TransportScript,omitempty"`
}

// Destination is one leg of a Transport: a named location, the operation
// to perform there, and free-form properties passed through to the
// operation.
type Destination struct {
	Location   string     `xml:"location,attr"`
	Operation  string     `xml:"operation,attr,omitempty"`
	Properties []Property `xml:"Property"`
}

// Property is a free-form key/value pair attached to a Destination.
type Property struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// TransportScript references an externally stored sequence of
// destinations by name, instead of enumerating them inline. A Transport
// carries either inline Destinations or a Script, never meaningfully
// both. ToTransportOrder rejects a Transport that carries a Script; this
// package does not expand one.
type TransportScript struct {
	Name string `xml:"name,attr"`
}

// Marshal renders set as an indented XML document.
func Marshal(set *TCSOrderSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode order set: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Unmarshal decodes an order-set document.
func Unmarshal(data []byte) (*TCSOrderSet, error) {
	var set TCSOrderSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode order set: %w", err)
	}
	return &set, nil
}

// ReadFile loads and decodes an order-set document from path.
func ReadFile(path string) (*TCSOrderSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read order set file: %w", err)
	}
	return Unmarshal(data)
}

// WriteFile marshals set and writes it to path.
func WriteFile(path string, set *TCSOrderSet) error {
	data, err := Marshal(set)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
