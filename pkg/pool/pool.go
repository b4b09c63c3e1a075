package pool

import (
	"strconv"
	"sync"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
)

// Pool is the Object Pool. One Pool instance backs an entire kernel
// process; it is safe for concurrent use by multiple readers and a single
// writer discipline enforced by its RWMutex (the router and the resource
// manager only read it).
type Pool struct {
	mu     sync.RWMutex
	broker *events.Broker
	nextID int64

	points              map[int64]*kerneltypes.Point
	pointsByName        map[string]int64
	paths               map[int64]*kerneltypes.Path
	pathsByName         map[string]int64
	locations           map[int64]*kerneltypes.Location
	locationsByName     map[string]int64
	locationTypes       map[int64]*kerneltypes.LocationType
	locationTypesByName map[string]int64
	blocks              map[int64]*kerneltypes.Block
	blocksByName        map[string]int64
	vehicles            map[int64]*kerneltypes.Vehicle
	vehiclesByName      map[string]int64
	orders              map[int64]*kerneltypes.TransportOrder
	ordersByName        map[string]int64
}

// New creates an empty Pool that publishes every mutation through broker.
func New(broker *events.Broker) *Pool {
	return &Pool{
		broker:              broker,
		nextID:              1,
		points:              make(map[int64]*kerneltypes.Point),
		pointsByName:        make(map[string]int64),
		paths:               make(map[int64]*kerneltypes.Path),
		pathsByName:         make(map[string]int64),
		locations:           make(map[int64]*kerneltypes.Location),
		locationsByName:     make(map[string]int64),
		locationTypes:       make(map[int64]*kerneltypes.LocationType),
		locationTypesByName: make(map[string]int64),
		blocks:              make(map[int64]*kerneltypes.Block),
		blocksByName:        make(map[string]int64),
		vehicles:            make(map[int64]*kerneltypes.Vehicle),
		vehiclesByName:      make(map[string]int64),
		orders:              make(map[int64]*kerneltypes.TransportOrder),
		ordersByName:        make(map[string]int64),
	}
}

func (p *Pool) allocateID() int64 {
	id := p.nextID
	p.nextID++
	return id
}

// publish emits one change event carrying the mutation's pre-image and
// post-image. Both must already be defensive copies, never the stored
// objects themselves.
func (p *Pool) publish(evtType events.EventType, class kerneltypes.Class, id int64, name string, before, after any) {
	if p.broker == nil {
		return
	}
	p.broker.Publish(&events.Event{
		Type:        evtType,
		ObjectClass: string(class),
		ObjectID:    strconv.FormatInt(id, 10),
		ObjectName:  name,
		Before:      before,
		After:       after,
	})
}

// --- Points ---------------------------------------------------------------

// CreatePoint inserts a new Point, assigning its id, and returns a copy of
// the stored object.
func (p *Pool) CreatePoint(point *kerneltypes.Point) (*kerneltypes.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pointsByName[point.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "point name already exists: "+point.Name, nil)
	}
	stored := point.Clone()
	stored.ID = p.allocateID()
	p.points[stored.ID] = stored
	p.pointsByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassPoint, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

// GetPoint returns a defensive copy of the Point with the given id.
func (p *Pool) GetPoint(id int64) (*kerneltypes.Point, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pt, ok := p.points[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown point id", nil)
	}
	return pt.Clone(), nil
}

// GetPointByName returns a defensive copy of the Point with the given name.
func (p *Pool) GetPointByName(name string) (*kerneltypes.Point, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.pointsByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown point name: "+name, nil)
	}
	return p.points[id].Clone(), nil
}

// ListPoints returns defensive copies of every Point.
func (p *Pool) ListPoints() []*kerneltypes.Point {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.Point, 0, len(p.points))
	for _, pt := range p.points {
		out = append(out, pt.Clone())
	}
	return out
}

// UpdatePoint replaces the stored Point matching point.ID.
func (p *Pool) UpdatePoint(point *kerneltypes.Point) (*kerneltypes.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.points[point.ID]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown point id", nil)
	}
	if existing.Name != point.Name {
		if _, taken := p.pointsByName[point.Name]; taken {
			return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "point name already exists: "+point.Name, nil)
		}
		delete(p.pointsByName, existing.Name)
		p.pointsByName[point.Name] = point.ID
	}
	stored := point.Clone()
	p.points[point.ID] = stored
	p.publish(events.EventObjectChanged, kerneltypes.ClassPoint, stored.ID, stored.Name, existing.Clone(), stored.Clone())
	return stored.Clone(), nil
}

// DeletePoint removes the Point with the given id.
func (p *Pool) DeletePoint(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pt, ok := p.points[id]
	if !ok {
		return kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown point id", nil)
	}
	delete(p.points, id)
	delete(p.pointsByName, pt.Name)
	p.publish(events.EventObjectRemoved, kerneltypes.ClassPoint, id, pt.Name, pt.Clone(), nil)
	return nil
}

// --- Paths ------------------------------------------------------------

// CreatePath inserts a new Path, assigning its id.
func (p *Pool) CreatePath(path *kerneltypes.Path) (*kerneltypes.Path, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path.Source.Equal(path.Destination) {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "path source and destination must differ", nil)
	}
	if _, exists := p.pathsByName[path.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "path name already exists: "+path.Name, nil)
	}
	stored := path.Clone()
	stored.ID = p.allocateID()
	p.paths[stored.ID] = stored
	p.pathsByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassPath, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) GetPath(id int64) (*kerneltypes.Path, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pth, ok := p.paths[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown path id", nil)
	}
	return pth.Clone(), nil
}

func (p *Pool) GetPathByName(name string) (*kerneltypes.Path, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.pathsByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown path name: "+name, nil)
	}
	return p.paths[id].Clone(), nil
}

func (p *Pool) ListPaths() []*kerneltypes.Path {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.Path, 0, len(p.paths))
	for _, pth := range p.paths {
		out = append(out, pth.Clone())
	}
	return out
}

func (p *Pool) UpdatePath(path *kerneltypes.Path) (*kerneltypes.Path, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.paths[path.ID]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown path id", nil)
	}
	if existing.Name != path.Name {
		if _, taken := p.pathsByName[path.Name]; taken {
			return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "path name already exists: "+path.Name, nil)
		}
		delete(p.pathsByName, existing.Name)
		p.pathsByName[path.Name] = path.ID
	}
	stored := path.Clone()
	p.paths[path.ID] = stored
	p.publish(events.EventObjectChanged, kerneltypes.ClassPath, stored.ID, stored.Name, existing.Clone(), stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) DeletePath(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pth, ok := p.paths[id]
	if !ok {
		return kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown path id", nil)
	}
	delete(p.paths, id)
	delete(p.pathsByName, pth.Name)
	p.publish(events.EventObjectRemoved, kerneltypes.ClassPath, id, pth.Name, pth.Clone(), nil)
	return nil
}

// --- Location types -----------------------------------------------------

func (p *Pool) CreateLocationType(lt *kerneltypes.LocationType) (*kerneltypes.LocationType, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.locationTypesByName[lt.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "location type name already exists: "+lt.Name, nil)
	}
	stored := *lt
	stored.ID = p.allocateID()
	stored.AllowedOperations = append([]string(nil), lt.AllowedOperations...)
	p.locationTypes[stored.ID] = &stored
	p.locationTypesByName[stored.Name] = stored.ID
	after := stored
	p.publish(events.EventObjectCreated, kerneltypes.ClassLocationType, stored.ID, stored.Name, nil, &after)
	result := stored
	return &result, nil
}

func (p *Pool) GetLocationType(id int64) (*kerneltypes.LocationType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lt, ok := p.locationTypes[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown location type id", nil)
	}
	cp := *lt
	return &cp, nil
}

func (p *Pool) GetLocationTypeByName(name string) (*kerneltypes.LocationType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.locationTypesByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown location type name: "+name, nil)
	}
	cp := *p.locationTypes[id]
	return &cp, nil
}

func (p *Pool) ListLocationTypes() []*kerneltypes.LocationType {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.LocationType, 0, len(p.locationTypes))
	for _, lt := range p.locationTypes {
		cp := *lt
		out = append(out, &cp)
	}
	return out
}

// --- Locations ----------------------------------------------------------

func (p *Pool) CreateLocation(loc *kerneltypes.Location) (*kerneltypes.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.locationTypes[loc.Type.ID]; !loc.Type.IsPlaceholder() && !exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "location references unknown location type", nil)
	}
	if _, exists := p.locationsByName[loc.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "location name already exists: "+loc.Name, nil)
	}
	stored := loc.Clone()
	stored.ID = p.allocateID()
	p.locations[stored.ID] = stored
	p.locationsByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassLocation, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) GetLocation(id int64) (*kerneltypes.Location, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	loc, ok := p.locations[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown location id", nil)
	}
	return loc.Clone(), nil
}

func (p *Pool) GetLocationByName(name string) (*kerneltypes.Location, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.locationsByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown location name: "+name, nil)
	}
	return p.locations[id].Clone(), nil
}

func (p *Pool) ListLocations() []*kerneltypes.Location {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.Location, 0, len(p.locations))
	for _, loc := range p.locations {
		out = append(out, loc.Clone())
	}
	return out
}

// --- Blocks ---------------------------------------------------------------

func (p *Pool) CreateBlock(block *kerneltypes.Block) (*kerneltypes.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.blocksByName[block.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "block name already exists: "+block.Name, nil)
	}
	stored := block.Clone()
	stored.ID = p.allocateID()
	p.blocks[stored.ID] = stored
	p.blocksByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassBlock, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) GetBlock(id int64) (*kerneltypes.Block, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, ok := p.blocks[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown block id", nil)
	}
	return b.Clone(), nil
}

// ListBlocks returns defensive copies of every Block.
func (p *Pool) ListBlocks() []*kerneltypes.Block {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.Block, 0, len(p.blocks))
	for _, b := range p.blocks {
		out = append(out, b.Clone())
	}
	return out
}

// --- Vehicles ---------------------------------------------------------------

func (p *Pool) CreateVehicle(v *kerneltypes.Vehicle) (*kerneltypes.Vehicle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.vehiclesByName[v.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "vehicle name already exists: "+v.Name, nil)
	}
	stored := v.Clone()
	stored.ID = p.allocateID()
	p.vehicles[stored.ID] = stored
	p.vehiclesByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassVehicle, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) GetVehicle(id int64) (*kerneltypes.Vehicle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.vehicles[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown vehicle id", nil)
	}
	return v.Clone(), nil
}

func (p *Pool) GetVehicleByName(name string) (*kerneltypes.Vehicle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.vehiclesByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown vehicle name: "+name, nil)
	}
	return p.vehicles[id].Clone(), nil
}

func (p *Pool) ListVehicles() []*kerneltypes.Vehicle {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.Vehicle, 0, len(p.vehicles))
	for _, v := range p.vehicles {
		out = append(out, v.Clone())
	}
	return out
}

// UpdateVehicle replaces the stored Vehicle matching v.ID.
func (p *Pool) UpdateVehicle(v *kerneltypes.Vehicle) (*kerneltypes.Vehicle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.vehicles[v.ID]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown vehicle id", nil)
	}
	stored := v.Clone()
	p.vehicles[v.ID] = stored
	p.publish(events.EventObjectChanged, kerneltypes.ClassVehicle, stored.ID, stored.Name, existing.Clone(), stored.Clone())
	return stored.Clone(), nil
}

// --- Transport orders -------------------------------------------------

// CreateOrder inserts a new TransportOrder, assigning its id. If o.Name is
// empty a name is generated (see pkg/pool/ids.go).
func (p *Pool) CreateOrder(o *kerneltypes.TransportOrder) (*kerneltypes.TransportOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if o.Name == "" {
		o.Name = generateOrderName()
	}
	if _, exists := p.ordersByName[o.Name]; exists {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectExists, "order name already exists: "+o.Name, nil)
	}
	stored := o.Clone()
	stored.ID = p.allocateID()
	p.orders[stored.ID] = stored
	p.ordersByName[stored.Name] = stored.ID
	p.publish(events.EventObjectCreated, kerneltypes.ClassTransportOrder, stored.ID, stored.Name, nil, stored.Clone())
	return stored.Clone(), nil
}

func (p *Pool) GetOrder(id int64) (*kerneltypes.TransportOrder, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	o, ok := p.orders[id]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown order id", nil)
	}
	return o.Clone(), nil
}

func (p *Pool) GetOrderByName(name string) (*kerneltypes.TransportOrder, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.ordersByName[name]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown order name: "+name, nil)
	}
	return p.orders[id].Clone(), nil
}

func (p *Pool) ListOrders() []*kerneltypes.TransportOrder {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*kerneltypes.TransportOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o.Clone())
	}
	return out
}

// UpdateOrder replaces the stored TransportOrder matching o.ID.
func (p *Pool) UpdateOrder(o *kerneltypes.TransportOrder) (*kerneltypes.TransportOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.orders[o.ID]
	if !ok {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown order id", nil)
	}
	stored := o.Clone()
	p.orders[o.ID] = stored
	p.publish(events.EventObjectChanged, kerneltypes.ClassTransportOrder, stored.ID, stored.Name, existing.Clone(), stored.Clone())
	return stored.Clone(), nil
}

// DeleteOrder removes the TransportOrder with the given id, used by the
// dispatcher's garbage collection of orders past the archival horizon.
func (p *Pool) DeleteOrder(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[id]
	if !ok {
		return kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "unknown order id", nil)
	}
	delete(p.orders, id)
	delete(p.ordersByName, o.Name)
	p.publish(events.EventObjectRemoved, kerneltypes.ClassTransportOrder, id, o.Name, o.Clone(), nil)
	return nil
}

// ResolveByName looks up an id by class and name, used to resolve
// kerneltypes.Ref placeholders against the pool's current contents.
func (p *Pool) ResolveByName(class kerneltypes.Class, name string) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch class {
	case kerneltypes.ClassPoint:
		id, ok := p.pointsByName[name]
		return id, ok
	case kerneltypes.ClassPath:
		id, ok := p.pathsByName[name]
		return id, ok
	case kerneltypes.ClassLocation:
		id, ok := p.locationsByName[name]
		return id, ok
	case kerneltypes.ClassLocationType:
		id, ok := p.locationTypesByName[name]
		return id, ok
	case kerneltypes.ClassBlock:
		id, ok := p.blocksByName[name]
		return id, ok
	case kerneltypes.ClassVehicle:
		id, ok := p.vehiclesByName[name]
		return id, ok
	case kerneltypes.ClassTransportOrder:
		id, ok := p.ordersByName[name]
		return id, ok
	default:
		return 0, false
	}
}

// Clear removes every object from the pool, used when the kernel returns
// from OPERATING to MODELLING and the topology is about to be rebuilt from
// scratch.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := log.WithComponent("pool")
	logger.Info().Msg("clearing pool for re-modelling")

	p.points = make(map[int64]*kerneltypes.Point)
	p.pointsByName = make(map[string]int64)
	p.paths = make(map[int64]*kerneltypes.Path)
	p.pathsByName = make(map[string]int64)
	p.locations = make(map[int64]*kerneltypes.Location)
	p.locationsByName = make(map[string]int64)
	p.locationTypes = make(map[int64]*kerneltypes.LocationType)
	p.locationTypesByName = make(map[string]int64)
	p.blocks = make(map[int64]*kerneltypes.Block)
	p.blocksByName = make(map[string]int64)
	// Vehicles and transport orders persist across mode changes; only
	// topology is cleared.
}
