package volume

// Mask is a binary volume laid out like Grid.
type Mask struct {
	geom Geometry
	bits []bool
}

// NewMask allocates an all-background mask over geom.
func NewMask(geom Geometry) (*Mask, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &Mask{geom: geom, bits: make([]bool, geom.Len())}, nil
}

// Geometry returns the reference geometry of the mask.
func (m *Mask) Geometry() Geometry { return m.geom }

// Set marks voxel idx as foreground. Writers touching disjoint voxels may
// call Set concurrently.
func (m *Mask) Set(idx Index) {
	m.bits[m.geom.Offset(idx)] = true
}

// IsSet reports whether voxel idx is foreground.
func (m *Mask) IsSet(idx Index) bool {
	return m.bits[m.geom.Offset(idx)]
}

// Count returns the number of foreground voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Volume returns the foreground volume in mm³.
func (m *Mask) Volume() float64 {
	return float64(m.Count()) * m.geom.VoxelVolume()
}
