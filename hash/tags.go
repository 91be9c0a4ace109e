package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the node hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every previously computed digest, including persisted cache entries.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing digests.
const HashVersion byte = 1

// Node tags. Each tag uniquely identifies a node kind in the serialized
// byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literals
	TagNumber byte = 0x01
	TagString byte = 0x02
	TagBool   byte = 0x03

	// Names and functions
	TagVarRef byte = 0x04
	TagLambda byte = 0x05
	TagCall   byte = 0x06
	TagLet    byte = 0x07

	// Operators
	TagBinaryOp byte = 0x08
	TagUnaryOp  byte = 0x09

	// Control flow and data
	TagMatch    byte = 0x0A
	TagRecord   byte = 0x0B
	TagFieldGet byte = 0x0C
	TagList     byte = 0x0D

	// Reserved 0x0E-0x0F

	// Geometry
	TagPrimitive    byte = 0x10
	TagBoolean      byte = 0x11
	TagTransform    byte = 0x12
	TagGenerate     byte = 0x13
	TagThreadedHole byte = 0x14

	// Debugging and diagnostics
	TagTrace byte = 0x15
	TagError byte = 0x16

	// Pattern sub-tags (used within match serialization)
	TagPatWildcard byte = 0x20
	TagPatLiteral  byte = 0x21
	TagPatBind     byte = 0x22
	TagPatRecord   byte = 0x23

	// Operand markers
	TagAbsent  byte = 0x28 // optional operand not supplied
	TagPresent byte = 0x29

	// Derived keys
	TagBind    byte = 0x30
	TagBuiltin byte = 0x31

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumber, TagString, TagBool,
	TagVarRef, TagLambda, TagCall, TagLet,
	TagBinaryOp, TagUnaryOp,
	TagMatch, TagRecord, TagFieldGet, TagList,
	TagPrimitive, TagBoolean, TagTransform, TagGenerate, TagThreadedHole,
	TagTrace, TagError,
	TagPatWildcard, TagPatLiteral, TagPatBind, TagPatRecord,
	TagAbsent, TagPresent,
	TagBind, TagBuiltin,
}
