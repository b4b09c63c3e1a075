package model

import (
	"fmt"
	"strings"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
)

// LoadIntoPool creates every entity in doc inside p, in dependency order
// (points and vehicles first, then the paths/locations/blocks that
// reference them by name), and resolves every placeholder reference
// before returning.
func LoadIntoPool(doc *Document, p *pool.Pool) error {
	for _, px := range doc.Points {
		pt := &kerneltypes.Point{
			Name: px.Name,
			Type: kerneltypes.PointType(px.Type),
			Pose: kerneltypes.Pose{X: px.Pose.X, Y: px.Pose.Y, Z: px.Pose.Z, Orientation: px.Pose.Orientation},
		}
		if _, err := p.CreatePoint(pt); err != nil {
			return fmt.Errorf("load point %q: %w", px.Name, err)
		}
	}

	for _, vx := range doc.Vehicles {
		v := &kerneltypes.Vehicle{
			Name:                    vx.Name,
			MaxVelocity:             vx.MaxVelocity,
			EnergyCriticalThreshold: vx.EnergyCriticalThreshold,
			EnergyGoodThreshold:     vx.EnergyGoodThreshold,
			RechargeOperation:       vx.RechargeOperation,
			State:                   kerneltypes.VehicleUnknown,
			ProcState:               kerneltypes.ProcIdle,
		}
		if _, err := p.CreateVehicle(v); err != nil {
			return fmt.Errorf("load vehicle %q: %w", vx.Name, err)
		}
	}

	for _, ltx := range doc.LocationTypes {
		lt := &kerneltypes.LocationType{
			Name:              ltx.Name,
			AllowedOperations: append([]string(nil), ltx.AllowedOperations...),
		}
		if _, err := p.CreateLocationType(lt); err != nil {
			return fmt.Errorf("load location type %q: %w", ltx.Name, err)
		}
	}

	for _, pax := range doc.Paths {
		source := kerneltypes.NewPlaceholderRef(kerneltypes.ClassPoint, pax.Source)
		dest := kerneltypes.NewPlaceholderRef(kerneltypes.ClassPoint, pax.Destination)
		resolvedSource, err := source.Resolve(p.ResolveByName)
		if err != nil {
			return fmt.Errorf("load path %q: %w", pax.Name, err)
		}
		resolvedDest, err := dest.Resolve(p.ResolveByName)
		if err != nil {
			return fmt.Errorf("load path %q: %w", pax.Name, err)
		}
		props := make(map[string]string, len(pax.Properties))
		for _, kv := range pax.Properties {
			props[kv.Key] = kv.Value
		}
		path := &kerneltypes.Path{
			Name:               pax.Name,
			Source:             resolvedSource,
			Destination:        resolvedDest,
			Length:             pax.Length,
			MaxVelocity:        pax.MaxVelocity,
			MaxReverseVelocity: pax.MaxReverseVelocity,
			Locked:             pax.Locked,
			Properties:         props,
		}
		if _, err := p.CreatePath(path); err != nil {
			return fmt.Errorf("load path %q: %w", pax.Name, err)
		}
	}

	for _, lx := range doc.Locations {
		typeRef := kerneltypes.NewPlaceholderRef(kerneltypes.ClassLocationType, lx.Type)
		resolvedType, err := typeRef.Resolve(p.ResolveByName)
		if err != nil {
			return fmt.Errorf("load location %q: %w", lx.Name, err)
		}
		links := make([]kerneltypes.LocationLink, 0, len(lx.Link))
		for _, lnk := range lx.Link {
			pointRef := kerneltypes.NewPlaceholderRef(kerneltypes.ClassPoint, lnk.Point)
			resolvedPoint, err := pointRef.Resolve(p.ResolveByName)
			if err != nil {
				return fmt.Errorf("load location %q link: %w", lx.Name, err)
			}
			links = append(links, kerneltypes.LocationLink{
				Point:             resolvedPoint,
				AllowedOperations: append([]string(nil), lnk.AllowedOperations...),
			})
		}
		loc := &kerneltypes.Location{
			Name:  lx.Name,
			Type:  resolvedType,
			Links: links,
		}
		if _, err := p.CreateLocation(loc); err != nil {
			return fmt.Errorf("load location %q: %w", lx.Name, err)
		}
	}

	for _, bx := range doc.Blocks {
		members := make([]kerneltypes.Ref, 0, len(bx.Members))
		for _, m := range bx.Members {
			class, name, err := splitMember(m)
			if err != nil {
				return fmt.Errorf("load block %q: %w", bx.Name, err)
			}
			ref := kerneltypes.NewPlaceholderRef(class, name)
			resolved, err := ref.Resolve(p.ResolveByName)
			if err != nil {
				return fmt.Errorf("load block %q: %w", bx.Name, err)
			}
			members = append(members, resolved)
		}
		block := &kerneltypes.Block{Name: bx.Name, Members: members}
		if _, err := p.CreateBlock(block); err != nil {
			return fmt.Errorf("load block %q: %w", bx.Name, err)
		}
	}

	return nil
}

// splitMember parses a Block member of the form "Class:Name", e.g.
// "Point:p1" or "Path:path-a-b".
func splitMember(member string) (kerneltypes.Class, string, error) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed block member %q, expected \"Class:Name\"", member)
	}
	class := kerneltypes.Class(parts[0])
	switch class {
	case kerneltypes.ClassPoint, kerneltypes.ClassPath:
		return class, parts[1], nil
	default:
		return "", "", fmt.Errorf("block member %q: class %q is not a valid resource class", member, class)
	}
}

// FromPool serialises the current topology held in p into a Document
// suitable for Write. Vehicles' runtime fields (position, state, orders)
// are not captured — only the static attributes a model load restores.
func FromPool(p *pool.Pool) *Document {
	doc := &Document{Version: ModelVersion}

	for _, pt := range p.ListPoints() {
		doc.Points = append(doc.Points, PointXML{
			Name: pt.Name,
			Type: string(pt.Type),
			Pose: PoseXML{X: pt.Pose.X, Y: pt.Pose.Y, Z: pt.Pose.Z, Orientation: pt.Pose.Orientation},
		})
	}

	for _, pa := range p.ListPaths() {
		props := make([]PropertyXML, 0, len(pa.Properties))
		for k, v := range pa.Properties {
			props = append(props, PropertyXML{Key: k, Value: v})
		}
		doc.Paths = append(doc.Paths, PathXML{
			Name:               pa.Name,
			Source:             pa.Source.Name,
			Destination:        pa.Destination.Name,
			Length:             pa.Length,
			MaxVelocity:        pa.MaxVelocity,
			MaxReverseVelocity: pa.MaxReverseVelocity,
			Locked:             pa.Locked,
			Properties:         props,
		})
	}

	for _, lt := range p.ListLocationTypes() {
		doc.LocationTypes = append(doc.LocationTypes, LocationTypeXML{
			Name:              lt.Name,
			AllowedOperations: append([]string(nil), lt.AllowedOperations...),
		})
	}

	for _, loc := range p.ListLocations() {
		links := make([]LinkXML, 0, len(loc.Links))
		for _, lnk := range loc.Links {
			links = append(links, LinkXML{
				Point:             lnk.Point.Name,
				AllowedOperations: append([]string(nil), lnk.AllowedOperations...),
			})
		}
		doc.Locations = append(doc.Locations, LocationXML{
			Name: loc.Name,
			Type: loc.Type.Name,
			Link: links,
		})
	}

	for _, b := range p.ListBlocks() {
		members := make([]string, 0, len(b.Members))
		for _, m := range b.Members {
			members = append(members, string(m.Class)+":"+m.Name)
		}
		doc.Blocks = append(doc.Blocks, BlockXML{Name: b.Name, Members: members})
	}

	for _, v := range p.ListVehicles() {
		doc.Vehicles = append(doc.Vehicles, VehicleXML{
			Name:                    v.Name,
			MaxVelocity:             v.MaxVelocity,
			EnergyCriticalThreshold: v.EnergyCriticalThreshold,
			EnergyGoodThreshold:     v.EnergyGoodThreshold,
			RechargeOperation:       v.RechargeOperation,
		})
	}

	return doc
}
