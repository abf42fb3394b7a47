package browser

// ARIA role sets used to decide which AX tree nodes get refs in snapshots.

// interactiveRoles always get a ref: the agent can act on them directly.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"textbox":          true,
	"checkbox":         true,
	"radio":            true,
	"combobox":         true,
	"listbox":          true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"option":           true,
	"searchbox":        true,
	"slider":           true,
	"spinbutton":       true,
	"switch":           true,
	"tab":              true,
	"treeitem":         true,
}

// contentRoles get a ref only when named.
var contentRoles = map[string]bool{
	"heading":      true,
	"cell":         true,
	"gridcell":     true,
	"columnheader": true,
	"rowheader":    true,
	"listitem":     true,
	"article":      true,
	"region":       true,
	"main":         true,
	"navigation":   true,
}

// structuralRoles never get refs; compact mode removes unnamed ones.
var structuralRoles = map[string]bool{
	"generic":      true,
	"group":        true,
	"list":         true,
	"table":        true,
	"row":          true,
	"rowgroup":     true,
	"grid":         true,
	"treegrid":     true,
	"menu":         true,
	"menubar":      true,
	"toolbar":      true,
	"tablist":      true,
	"tree":         true,
	"directory":    true,
	"document":     true,
	"application":  true,
	"presentation": true,
	"none":         true,
}

// IsInteractive reports whether role is an interactive element role.
func IsInteractive(role string) bool {
	return interactiveRoles[role]
}

// IsContent reports whether role is a meaningful content role.
func IsContent(role string) bool {
	return contentRoles[role]
}

// IsStructural reports whether role is a layout/grouping role.
func IsStructural(role string) bool {
	return structuralRoles[role]
}
