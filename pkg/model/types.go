package model

import "encoding/xml"

// ModelVersion is the schema version this package writes and the only one
// it accepts on read. Reading a mismatched version is a fatal load error.
const ModelVersion = "1.0"

// Document is the root of the persisted topology model.
type Document struct {
	XMLName       xml.Name          `xml:"Model"`
	Version       string            `xml:"version,attr"`
	Name          string            `xml:"name,attr,omitempty"`
	Points        []PointXML        `xml:"Points>Point"`
	Paths         []PathXML         `xml:"Paths>Path"`
	LocationTypes []LocationTypeXML `xml:"LocationTypes>LocationType"`
	Locations     []LocationXML     `xml:"Locations>Location"`
	Blocks        []BlockXML        `xml:"Blocks>Block"`
	Vehicles      []VehicleXML      `xml:"Vehicles>Vehicle"`
	Layout        *VisualLayoutXML  `xml:"VisualLayout,omitempty"`
}

// PoseXML is a point's or layout element's spatial position/orientation.
type PoseXML struct {
	X           int64   `xml:"x,attr"`
	Y           int64   `xml:"y,attr"`
	Z           int64   `xml:"z,attr"`
	Orientation float64 `xml:"orientation,attr"`
}

// PointXML is one Points>Point element.
type PointXML struct {
	Name string  `xml:"name,attr"`
	Type string  `xml:"type,attr"`
	Pose PoseXML `xml:"Pose"`
}

// PropertyXML is one free-form key/value entry on a Path.
type PropertyXML struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// PathXML is one Paths>Path element. Source/Destination name points by
// name; they are resolved against the Pool once every Point has been
// loaded (see loader.go).
type PathXML struct {
	Name               string        `xml:"name,attr"`
	Source             string        `xml:"sourcePoint,attr"`
	Destination        string        `xml:"destinationPoint,attr"`
	Length             int64         `xml:"length,attr"`
	MaxVelocity        uint          `xml:"maxVelocity,attr"`
	MaxReverseVelocity uint          `xml:"maxReverseVelocity,attr"`
	Locked             bool          `xml:"locked,attr"`
	Properties         []PropertyXML `xml:"Property"`
}

// LocationTypeXML is one LocationTypes>LocationType element.
type LocationTypeXML struct {
	Name              string   `xml:"name,attr"`
	AllowedOperations []string `xml:"AllowedOperation"`
}

// LinkXML is one Location>Link element.
type LinkXML struct {
	Point             string   `xml:"point,attr"`
	AllowedOperations []string `xml:"AllowedOperation"`
}

// LocationXML is one Locations>Location element.
type LocationXML struct {
	Name string    `xml:"name,attr"`
	Type string    `xml:"type,attr"`
	Link []LinkXML `xml:"Link"`
}

// BlockXML is one Blocks>Block element. Members are "Class:Name" pairs
// (e.g. "Point:p1", "Path:path-a-b").
type BlockXML struct {
	Name    string   `xml:"name,attr"`
	Members []string `xml:"Member"`
}

// VehicleXML is one Vehicles>Vehicle element.
type VehicleXML struct {
	Name                    string `xml:"name,attr"`
	MaxVelocity             uint   `xml:"maxVelocity,attr"`
	EnergyCriticalThreshold int    `xml:"energyCriticalThreshold,attr"`
	EnergyGoodThreshold     int    `xml:"energyGoodThreshold,attr"`
	RechargeOperation       string `xml:"rechargeOperation,attr"`
}

// LayoutElementXML places one reference at a pixel position in the
// plant-overview GUI; the kernel carries this through unread (rendering is
// out of scope here) so a round trip never loses it.
type LayoutElementXML struct {
	Ref string `xml:"ref,attr"`
	X   int64  `xml:"x,attr"`
	Y   int64  `xml:"y,attr"`
}

// VisualLayoutXML is the layout map from references to layout elements.
type VisualLayoutXML struct {
	Name     string             `xml:"name,attr"`
	Elements []LayoutElementXML `xml:"Element"`
}
