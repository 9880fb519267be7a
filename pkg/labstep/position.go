package labstep

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/labstep/labstep-go/pkg/entityid"
)

// DefaultGridSize is the row and column count of a location that has no
// map yet.
const DefaultGridSize = 10

// Position is a rectangle on a location grid. X and Y are 0-indexed.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Validate checks the position is on the grid and non-empty.
func (p Position) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.X, validation.Min(0)),
		validation.Field(&p.Y, validation.Min(0)),
		validation.Field(&p.W, validation.Required, validation.Min(1)),
		validation.Field(&p.H, validation.Required, validation.Min(1)),
	)
}

// PositionMap is the sparse grid of a storage location, keyed by
// "{entityType}-{key}".
type PositionMap struct {
	RowCount    int                 `json:"rowCount"`
	ColumnCount int                 `json:"columnCount"`
	Data        map[string]Position `json:"data"`
}

// NewPositionMap returns an empty rows x columns grid.
func NewPositionMap(rows, columns int) *PositionMap {
	return &PositionMap{
		RowCount:    rows,
		ColumnCount: columns,
		Data:        map[string]Position{},
	}
}

// Set places ref at p, growing the grid until the whole rectangle fits.
// Other entries are kept.
func (m *PositionMap) Set(ref entityid.Ref, p Position) {
	if m.Data == nil {
		m.Data = map[string]Position{}
	}
	if right := p.X + max(p.W, 1); m.ColumnCount < right {
		m.ColumnCount = right
	}
	if bottom := p.Y + max(p.H, 1); m.RowCount < bottom {
		m.RowCount = bottom
	}
	m.Data[ref.String()] = p
}

// Get returns the position of ref.
func (m *PositionMap) Get(ref entityid.Ref) (Position, bool) {
	if m == nil {
		return Position{}, false
	}
	p, ok := m.Data[ref.String()]
	return p, ok
}

// Remove deletes ref from the map. The grid is not shrunk.
func (m *PositionMap) Remove(ref entityid.Ref) {
	delete(m.Data, ref.String())
}

func (m *PositionMap) clone() *PositionMap {
	if m == nil {
		return NewPositionMap(DefaultGridSize, DefaultGridSize)
	}
	out := NewPositionMap(m.RowCount, m.ColumnCount)
	for k, v := range m.Data {
		out.Data[k] = v
	}
	return out
}
