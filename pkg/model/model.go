package model

// AttrKind identifies the variant held by an attribute value
type AttrKind string

const (
	AttrKindShape     AttrKind = "shape"      // Tensor shape (dims, -1 for unknown)
	AttrKindShapeList AttrKind = "shape_list" // List of shapes, one per output slot
	AttrKindBool      AttrKind = "bool"       // Boolean flag
	AttrKindTypeList  AttrKind = "type_list"  // List of dtype tags, one per output slot
	AttrKindOpaque    AttrKind = "opaque"     // Anything the analysis never interprets
)

// Well-known operation tags and attribute keys
const (
	OpPlaceholder = "Placeholder"

	AttrShape           = "shape"             // Declared shape of a placeholder
	AttrOutputShapes    = "_output_shapes"    // Per-slot output shapes annotated by the exporter
	AttrOutputTypes     = "_output_types"     // Per-slot output dtypes; more than one means multi-output
	AttrOutputQuantized = "_output_quantized" // Set on outputs of quantization-aware graphs
)

// UnknownDim marks an axis whose size is not declared
const UnknownDim = -1

// DataType is a tensor element type tag as encoded in the graph (TensorFlow DataType enum)
type DataType int32

// AttrValue is one typed attribute of a node
type AttrValue interface {
	Kind() AttrKind
}

// ShapeAttr is a declared tensor shape
type ShapeAttr struct {
	Dims        []int `json:"dims"`                  // One entry per axis, UnknownDim when not declared
	UnknownRank bool  `json:"unknownRank,omitempty"` // Rank itself is not known
}

// ShapeListAttr holds one shape per output slot
type ShapeListAttr struct {
	Shapes []ShapeAttr `json:"shapes"`
}

// BoolAttr is a boolean attribute
type BoolAttr bool

// TypeListAttr holds one dtype per output slot
type TypeListAttr struct {
	Types []DataType `json:"types"`
}

// OpaqueAttr keeps the raw encoding of attributes the analysis does not interpret
type OpaqueAttr struct {
	Raw []byte `json:"-"`
}

func (ShapeAttr) Kind() AttrKind     { return AttrKindShape }
func (ShapeListAttr) Kind() AttrKind { return AttrKindShapeList }
func (BoolAttr) Kind() AttrKind      { return AttrKindBool }
func (TypeListAttr) Kind() AttrKind  { return AttrKindTypeList }
func (OpaqueAttr) Kind() AttrKind    { return AttrKindOpaque }

// IsFullyKnown returns true if the rank and every dimension are declared
func (s ShapeAttr) IsFullyKnown() bool {
	if s.UnknownRank {
		return false
	}
	for _, d := range s.Dims {
		if d < 0 {
			return false
		}
	}
	return true
}

// UnknownCount returns the number of undeclared axes
func (s ShapeAttr) UnknownCount() int {
	count := 0
	for _, d := range s.Dims {
		if d < 0 {
			count++
		}
	}
	return count
}

// Last returns the trailing dimension, or UnknownDim for rank-0 or unknown-rank shapes
func (s ShapeAttr) Last() int {
	if s.UnknownRank || len(s.Dims) == 0 {
		return UnknownDim
	}
	return s.Dims[len(s.Dims)-1]
}
