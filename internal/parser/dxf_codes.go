package parser

// FieldRole is the meaning of a group code inside the interchange format.
type FieldRole int

const (
	RoleUnrecognized FieldRole = iota
	RoleMarker                 // record/marker text: SECTION, LINE, ENDSEC...
	RolePrimaryText            // text payload
	RoleName                   // section and block names
	RoleLayer
	RoleX1
	RoleY1
	RoleX2
	RoleY2
	RoleRadius
	RoleAngle1
	RoleAngle2
	RoleColor
	RoleMirror
	RoleComment
)

// Group codes used by the importer.
const (
	CodeMarker      = 0
	CodePrimaryText = 1
	CodeName        = 2
	CodeLayer       = 8
	CodeX1          = 10
	CodeX2          = 11
	CodeY1          = 20
	CodeY2          = 21
	CodeRadius      = 40
	CodeAngle1      = 50
	CodeAngle2      = 51
	CodeColor       = 62
	// CodeMirror is the Z component of the extrusion direction; -1 marks an
	// entity drawn mirrored about the Y axis.
	CodeMirror  = 230
	CodeComment = 999
)

var codeTable = map[int]FieldRole{
	CodeMarker:      RoleMarker,
	CodePrimaryText: RolePrimaryText,
	CodeName:        RoleName,
	CodeLayer:       RoleLayer,
	CodeX1:          RoleX1,
	CodeY1:          RoleY1,
	CodeX2:          RoleX2,
	CodeY2:          RoleY2,
	CodeRadius:      RoleRadius,
	CodeAngle1:      RoleAngle1,
	CodeAngle2:      RoleAngle2,
	CodeColor:       RoleColor,
	CodeMirror:      RoleMirror,
	CodeComment:     RoleComment,
}

// RoleOf returns the role of code, RoleUnrecognized for codes outside the table.
func RoleOf(code int) FieldRole {
	return codeTable[code]
}
