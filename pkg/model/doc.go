// Package model persists and loads the topology model — the only thing
// the kernel persists of its own working state: points, paths, locations,
// location types, blocks, vehicles, and a visual layout, as a versioned
// XML document.
//
// Reading is schema-version-gated: before attempting the full
// encoding/xml structural decode, Read XPath-queries the document's root
// version attribute with github.com/antchfx/xmlquery/xpath and rejects a
// mismatch as a fatal load error without paying for the decode.
package model
