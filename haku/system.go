package haku

// ---------------------------------------------------------------------------
// System function indices
// ---------------------------------------------------------------------------

// System function indices are shared between the compiler, which emits
// OpSystem instructions, and the VM, which dispatches on them. The numbering
// groups arithmetic at 0x00, logic at 0x40, math values at 0x80, shapes at
// 0xc0 and scribbles at 0xe0, leaving room to grow each group.
const (
	SysAdd byte = 0x00
	SysSub byte = 0x01
	SysMul byte = 0x02
	SysDiv byte = 0x03
	SysNeg byte = 0x04

	SysNot       byte = 0x40
	SysEq        byte = 0x41
	SysNotEq     byte = 0x42
	SysLess      byte = 0x43
	SysLessEq    byte = 0x44
	SysGreater   byte = 0x45
	SysGreaterEq byte = 0x46

	SysVec   byte = 0x80
	SysVecX  byte = 0x81
	SysVecY  byte = 0x82
	SysVecZ  byte = 0x83
	SysVecW  byte = 0x84
	SysRgba  byte = 0x85
	SysRgbaR byte = 0x86
	SysRgbaG byte = 0x87
	SysRgbaB byte = 0x88
	SysRgbaA byte = 0x89

	SysList byte = 0x90

	SysToShape byte = 0xc0
	SysLine    byte = 0xc1
	SysRect    byte = 0xc2
	SysCircle  byte = 0xc3

	SysStroke byte = 0xe0
	SysFill   byte = 0xe1
)

// systemFnNames maps the intrinsics callable by name. Operators resolve
// through the grammar instead and are not listed here. Local variables and
// defs shadow these names.
var systemFnNames = map[string]byte{
	"vec":     SysVec,
	"vecX":    SysVecX,
	"vecY":    SysVecY,
	"vecZ":    SysVecZ,
	"vecW":    SysVecW,
	"rgba":    SysRgba,
	"rgbaR":   SysRgbaR,
	"rgbaG":   SysRgbaG,
	"rgbaB":   SysRgbaB,
	"rgbaA":   SysRgbaA,
	"list":    SysList,
	"toShape": SysToShape,
	"line":    SysLine,
	"rect":    SysRect,
	"circle":  SysCircle,
	"stroke":  SysStroke,
	"fill":    SysFill,
}

// SystemFnIndex resolves a named intrinsic.
func SystemFnIndex(name string) (byte, bool) {
	index, ok := systemFnNames[name]
	return index, ok
}
