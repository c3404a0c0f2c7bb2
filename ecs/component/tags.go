package component

// Label names an entity in levels, scripts and logs.
type Label struct {
	Name string
}

var LabelComponent = NewComponent[Label]()
