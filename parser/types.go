package parser

import "fmt"

type MemType struct {
	Lim Limits
}

type TableType struct {
	ET  RefType
	Lim Limits
}

type GlobalType struct {
	Mut bool
	T   ValType
}

// FieldType is a struct field or array element. Exactly one of Packed and T
// is set.
type FieldType struct {
	Packed TypeCode
	T      ValType
	Mut    bool
}

type AddressType int

const (
	ATI32 AddressType = iota
	ATI64
)

type Limits struct {
	AT       AddressType
	Min, Max uint64
	HasMax   bool
	Shared   bool
}

// ValueKind is the coarse classification of a value type. All reference types,
// nullable or not, abstract or concrete, share KindRef.
type ValueKind int

const (
	KindI32 ValueKind = iota
	KindI64
	KindF32
	KindF64
	KindV128
	KindRef
)

func (k ValueKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindV128:
		return "v128"
	case KindRef:
		return "ref"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

type ValType struct {
	isRef        bool
	numOrVecType TypeCode
	refType      RefType
}

// NewNumType builds a numeric or vector value type from its type code.
func NewNumType(tc TypeCode) ValType {
	if !tc.IsNumType() && !tc.IsVecType() {
		panic("type code was not a numtype or vectype")
	}
	return ValType{numOrVecType: tc}
}

func NewRefType(rt RefType) ValType {
	return ValType{isRef: true, refType: rt}
}

var (
	I32       = NewNumType(NTI32)
	I64       = NewNumType(NTI64)
	F32       = NewNumType(NTF32)
	F64       = NewNumType(NTF64)
	V128      = NewNumType(VTV128)
	FuncRef   = NewRefType(RefType{Null: true, HT: HTFunc})
	ExternRef = NewRefType(RefType{Null: true, HT: HTExtern})
)

func (vt ValType) Kind() ValueKind {
	if vt.isRef {
		return KindRef
	}
	switch vt.numOrVecType {
	case NTI32:
		return KindI32
	case NTI64:
		return KindI64
	case NTF32:
		return KindF32
	case NTF64:
		return KindF64
	default:
		return KindV128
	}
}

func (vt ValType) String() string {
	return vt.Kind().String()
}

func (vt ValType) IsNumType() bool {
	return !vt.isRef && vt.numOrVecType.IsNumType()
}

func (vt ValType) IsVecType() bool {
	return !vt.isRef && vt.numOrVecType.IsVecType()
}

func (vt ValType) IsRefType() bool {
	return vt.isRef
}

func (vt ValType) NumType() TypeCode {
	if !vt.IsNumType() {
		panic("valtype was not a numtype")
	}
	return vt.numOrVecType
}

func (vt ValType) VecType() TypeCode {
	if !vt.IsVecType() {
		panic("valtype was not a vectype")
	}
	return vt.numOrVecType
}

func (vt ValType) RefType() RefType {
	if !vt.IsRefType() {
		panic("valtype was not a reftype")
	}
	return vt.refType
}

type RefType struct {
	Null bool
	HT   TypeCode // may be an abstract heap type or a concrete one, depending on sign
}

type TypeCode int

const (
	// The hex bytes in here refer to the number's encoding in SLEB128.

	// numtype
	NT__last  TypeCode = NTI32
	NTI32     TypeCode = -1 // 0x7F
	NTI64     TypeCode = -2 // 0x7E
	NTF32     TypeCode = -3 // 0x7D
	NTF64     TypeCode = -4 // 0x7C
	NT__first TypeCode = NTF64

	// vectype
	VT__last  TypeCode = VTV128
	VTV128    TypeCode = -5 // 0x7B
	VT__first TypeCode = VTV128

	// packedtype, only valid as a storage type
	PTI8  TypeCode = -8 // 0x78
	PTI16 TypeCode = -9 // 0x77

	// heaptype (abstract, because positive values mean concrete type index)
	HT__last   TypeCode = HTNoExn
	HTNoExn    TypeCode = -12 // 0x74
	HTNoFunc   TypeCode = -13 // 0x73
	HTNoExtern TypeCode = -14 // 0x72
	HTNone     TypeCode = -15 // 0x71
	HTFunc     TypeCode = -16 // 0x70
	HTExtern   TypeCode = -17 // 0x6F
	HTAny      TypeCode = -18 // 0x6E
	HTEq       TypeCode = -19 // 0x6D
	HTI31      TypeCode = -20 // 0x6C
	HTStruct   TypeCode = -21 // 0x6B
	HTArray    TypeCode = -22 // 0x6A
	HTExn      TypeCode = -23 // 0x69
	HT__first  TypeCode = HTExn

	// Sentinel bytes indicating that a ref type's heap type follows.
	RTNonNull TypeCode = -28 // 0x64
	RTNull    TypeCode = -29 // 0x63
)

// Byte returns the single-byte encoding of a negative type code.
func (tc TypeCode) Byte() byte {
	return byte(tc) & 0x7F
}

func (tc TypeCode) IsNumType() bool {
	return NT__first <= tc && tc <= NT__last
}

func (tc TypeCode) IsVecType() bool {
	return VT__first <= tc && tc <= VT__last
}

func (tc TypeCode) IsHeapType() bool {
	return tc.IsAbstractHeapType() || tc.IsConcreteHeapType()
}

func (tc TypeCode) IsAbstractHeapType() bool {
	return HT__first <= tc && tc <= HT__last
}

// Type index 0 is encoded as a positive s33 of zero.
func (tc TypeCode) IsConcreteHeapType() bool {
	return tc >= 0
}

// Composite and subtype form bytes in the type section.
const (
	FormRec      byte = 0x4E
	FormSubFinal byte = 0x4F
	FormSub      byte = 0x50
	FormArray    byte = 0x5E
	FormStruct   byte = 0x5F
	FormFunc     byte = 0x60
)

type ExternKind byte

const (
	ExternFunc   ExternKind = 0x00
	ExternTable  ExternKind = 0x01
	ExternMemory ExternKind = 0x02
	ExternGlobal ExternKind = 0x03
	ExternTag    ExternKind = 0x04
)

func (k ExternKind) Valid() bool {
	return k <= ExternTag
}

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	case ExternTag:
		return "tag"
	}
	return fmt.Sprintf("ExternKind(0x%02x)", byte(k))
}
