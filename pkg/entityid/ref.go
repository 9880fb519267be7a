package entityid

// Ref names an entity inside a position map: "{entityType}-{id}".
type Ref struct {
	Type string
	ID   string
}

func NewRef(entityType, id string) Ref {
	return Ref{Type: entityType, ID: id}
}

func (r Ref) String() string {
	return r.Type + "-" + r.ID
}
