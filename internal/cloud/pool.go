package cloud

import "fmt"

// VM is a launched instance of an archetype.
//
// The operating point is mutable but only through the owning Pool, which keeps
// a version counter so cached timing values can be invalidated.
type VM struct {
	id     int
	vmType *VMType
	point  int
}

// ID returns the pool-unique instance id.
func (v *VM) ID() int { return v.id }

// Type returns the archetype this instance was launched from.
func (v *VM) Type() *VMType { return v.vmType }

// PointIndex returns the index of the current operating point (0 = fastest).
func (v *VM) PointIndex() int { return v.point }

// Point returns the current operating point.
func (v *VM) Point() OperatingPoint { return v.vmType.points[v.point] }

// Speed returns the processing speed at the current operating point.
func (v *VM) Speed() float64 { return v.Point().Speed }

// Power returns K * V^2 * f at the current operating point.
func (v *VM) Power() float64 {
	p := v.Point()
	return PowerCoefficient * p.Voltage * p.Voltage * p.Frequency
}

func (v *VM) String() string {
	return fmt.Sprintf("Vm{id=%d, type-id=%d, point=%s}", v.id, v.vmType.ID, v.Point())
}

// Pool holds the instances launched during one run.
type Pool struct {
	vms     []*VM
	version uint64
}

// NewPool returns an empty pool.
func NewPool() *Pool { return &Pool{} }

// Launch registers a new instance of t at its fastest operating point.
// Ids are assigned 0, 1, 2, ... in launch order.
func (p *Pool) Launch(t *VMType) *VM {
	vm := &VM{id: len(p.vms), vmType: t}
	p.vms = append(p.vms, vm)
	p.version++
	return vm
}

// VMs returns the launched instances in launch order.
func (p *Pool) VMs() []*VM {
	out := make([]*VM, len(p.vms))
	copy(out, p.vms)
	return out
}

// Len returns the number of launched instances.
func (p *Pool) Len() int { return len(p.vms) }

// Get returns the instance with the given id.
func (p *Pool) Get(id int) (*VM, bool) {
	if id < 0 || id >= len(p.vms) {
		return nil, false
	}
	return p.vms[id], true
}

// Version increases every time an instance is launched or re-scaled.
func (p *Pool) Version() uint64 { return p.version }

// FindIdle returns the first instance of t, in launch order, accepted by idle.
func (p *Pool) FindIdle(t *VMType, idle func(*VM) bool) (*VM, bool) {
	for _, vm := range p.vms {
		if vm.vmType.ID != t.ID {
			continue
		}
		if idle(vm) {
			return vm, true
		}
	}
	return nil, false
}

// Scale moves vm to the operating point at index.
func (p *Pool) Scale(vm *VM, index int) error {
	if vm == nil || vm.id < 0 || vm.id >= len(p.vms) || p.vms[vm.id] != vm {
		return &CatalogError{Kind: ErrUnknownVM, Msg: fmt.Sprintf("%v", vm)}
	}
	if index < 0 || index >= len(vm.vmType.points) {
		return invalidf("vm %d: operating point %d out of range [0,%d)", vm.id, index, len(vm.vmType.points))
	}
	if vm.point == index {
		return nil
	}
	vm.point = index
	p.version++
	return nil
}
