package aseprite

import (
	"fmt"
	"image/color"
	"maps"

	"github.com/askeladdk/asefile/internal/cursor"
	"github.com/google/uuid"
)

// Aliases of the composite value types used in properties.
type (
	Fixed = cursor.Fixed
	Point = cursor.Point
	Size  = cursor.Size
	Rect  = cursor.Rect
)

// UserDataFlags tell which parts of a UserData are set.
type UserDataFlags uint32

const (
	UserDataText UserDataFlags = 1 << iota
	UserDataColor
	UserDataProperties
)

// UserData is the optional user data attached to a frame, layer or cel.
type UserData struct {
	Flags UserDataFlags

	Text string

	Color color.NRGBA

	Properties Properties
}

// IsZero reports whether no user data is set.
func (u *UserData) IsZero() bool {
	return u.Flags == 0
}

// merge overlays the parts that are set in o onto u.
func (u *UserData) merge(o *UserData) {
	if o.Flags&UserDataText != 0 {
		u.Text = o.Text
	}
	if o.Flags&UserDataColor != 0 {
		u.Color = o.Color
	}
	if o.Flags&UserDataProperties != 0 {
		if u.Properties == nil {
			u.Properties = make(Properties, len(o.Properties))
		}
		maps.Copy(u.Properties, o.Properties)
	}
	u.Flags |= o.Flags
}

func (u UserData) clone() UserData {
	u.Properties = u.Properties.clone()
	return u
}

// ValueType is the type tag of a property value.
type ValueType uint16

const (
	ValueMixed ValueType = iota // only valid as a vector element type
	ValueBool
	ValueInt8
	ValueUint8
	ValueInt16
	ValueUint16
	ValueInt32
	ValueUint32
	ValueInt64
	ValueUint64
	ValueFixed
	ValueFloat32
	ValueFloat64
	ValueString
	ValuePoint
	ValueSize
	ValueRect
	ValueVector
	ValueMap
	ValueUUID
)

var valueTypeNames = [...]string{
	"mixed", "bool", "int8", "uint8", "int16", "uint16", "int32", "uint32",
	"int64", "uint64", "fixed", "float32", "float64", "string", "point",
	"size", "rect", "vector", "map", "uuid",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(0x%04x)", uint16(t))
}

// Value is a typed property value.
//
// The dynamic type of Data follows Type: bool, int8, uint8, int16, uint16,
// int32, uint32, int64, uint64, Fixed, float32, float64, string, Point,
// Size, Rect, Vector, Properties or uuid.UUID.
type Value struct {
	Type ValueType
	Data any
}

// Int64 returns the value of any signed or unsigned integer property.
// Values of type uint64 above math.MaxInt64 wrap.
func (v Value) Int64() (int64, bool) {
	switch x := v.Data.(type) {
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case int16:
		return int64(x), true
	case uint16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

// Float64 returns the value of any numeric property.
func (v Value) Float64() (float64, bool) {
	switch x := v.Data.(type) {
	case Fixed:
		return x.Float64(), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := v.Int64(); ok {
		return float64(i), true
	}
	return 0, false
}

func (v Value) String() string {
	return fmt.Sprint(v.Data)
}

func (v Value) clone() Value {
	switch x := v.Data.(type) {
	case Vector:
		elems := make([]Value, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = e.clone()
		}
		v.Data = Vector{Type: x.Type, Elems: elems}
	case Properties:
		v.Data = x.clone()
	}
	return v
}

// Vector is a list of property values. Type is ValueMixed when the
// elements carry their own type.
type Vector struct {
	Type  ValueType
	Elems []Value
}

// Properties is a map of named property values.
type Properties map[string]Value

func (p Properties) clone() Properties {
	if p == nil {
		return nil
	}
	q := make(Properties, len(p))
	for k, v := range p {
		q[k] = v.clone()
	}
	return q
}

// capacity bounds a preallocation by the bytes left to read.
func capacity(n int32, remaining, minSize int) int {
	if n <= 0 {
		return 0
	}
	return min(int(n), remaining/minSize)
}

func (d *decoder) readUserData() (*UserData, error) {
	flags, err := d.c.ReadUint32()
	if err != nil {
		return nil, err
	}

	ud := UserData{Flags: UserDataFlags(flags) & (UserDataText | UserDataColor | UserDataProperties)}

	if ud.Flags&UserDataText != 0 {
		if ud.Text, err = d.c.ReadString(); err != nil {
			return nil, err
		}
	}

	if ud.Flags&UserDataColor != 0 {
		if ud.Color, err = d.readNRGBA(); err != nil {
			return nil, err
		}
	}

	if ud.Flags&UserDataProperties != 0 {
		if ud.Properties, err = d.readProperties(0); err != nil {
			return nil, err
		}
	}

	return &ud, nil
}

func (d *decoder) readNRGBA() (color.NRGBA, error) {
	raw, err := d.c.ReadBytes(4)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: raw[3]}, nil
}

// maxNesting bounds how deep vectors and maps may nest in a properties map.
const maxNesting = 512

var errNesting = fmt.Errorf("%w: values nested deeper than %d", ErrUnsupportedUserDataType, maxNesting)

// readProperties reads a properties map at the given nesting depth.
func (d *decoder) readProperties(depth int) (Properties, error) {
	if depth > maxNesting {
		return nil, errNesting
	}

	// The byte size of the map is informational only.
	if _, err := d.c.ReadInt32(); err != nil {
		return nil, err
	}

	n, err := d.c.ReadInt32()
	if err != nil {
		return nil, err
	}

	props := make(Properties, capacity(n, d.c.Len(), 4))

	for i := int32(0); i < n; i++ {
		key, err := d.c.ReadString()
		if err != nil {
			return nil, err
		}

		typ, err := d.c.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}

		v, err := d.readValue(ValueType(typ), depth)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}

		props[key] = v
	}

	return props, nil
}

func (d *decoder) readVector(depth int) (Vector, error) {
	if depth > maxNesting {
		return Vector{}, errNesting
	}

	n, err := d.c.ReadInt32()
	if err != nil {
		return Vector{}, err
	}

	typ, err := d.c.ReadUint16()
	if err != nil {
		return Vector{}, err
	}

	vec := Vector{
		Type:  ValueType(typ),
		Elems: make([]Value, 0, capacity(n, d.c.Len(), 1)),
	}

	for i := int32(0); i < n; i++ {
		elemType := vec.Type
		if elemType == ValueMixed {
			t, err := d.c.ReadUint16()
			if err != nil {
				return Vector{}, err
			}
			elemType = ValueType(t)
		}

		v, err := d.readValue(elemType, depth)
		if err != nil {
			return Vector{}, fmt.Errorf("element %d: %w", i, err)
		}

		vec.Elems = append(vec.Elems, v)
	}

	return vec, nil
}

// readValue reads a value of type typ inside a container at the given
// nesting depth.
func (d *decoder) readValue(typ ValueType, depth int) (Value, error) {
	var (
		data any
		err  error
	)

	c := d.c

	switch typ {
	case ValueBool:
		var b byte
		b, err = c.ReadByte()
		data = b != 0
	case ValueInt8:
		data, err = c.ReadInt8()
	case ValueUint8:
		data, err = c.ReadUint8()
	case ValueInt16:
		data, err = c.ReadInt16()
	case ValueUint16:
		data, err = c.ReadUint16()
	case ValueInt32:
		data, err = c.ReadInt32()
	case ValueUint32:
		data, err = c.ReadUint32()
	case ValueInt64:
		data, err = c.ReadInt64()
	case ValueUint64:
		data, err = c.ReadUint64()
	case ValueFixed:
		data, err = c.ReadFixed()
	case ValueFloat32:
		data, err = c.ReadFloat32()
	case ValueFloat64:
		data, err = c.ReadFloat64()
	case ValueString:
		data, err = c.ReadString()
	case ValuePoint:
		data, err = c.ReadPoint()
	case ValueSize:
		data, err = c.ReadSize()
	case ValueRect:
		data, err = c.ReadRect()
	case ValueVector:
		data, err = d.readVector(depth + 1)
	case ValueMap:
		data, err = d.readProperties(depth + 1)
	case ValueUUID:
		var id uuid.UUID
		id, err = c.ReadUUID()
		data = id
	default:
		return Value{}, fmt.Errorf("%w: 0x%04x", ErrUnsupportedUserDataType, uint16(typ))
	}

	if err != nil {
		return Value{}, err
	}

	return Value{Type: typ, Data: data}, nil
}
