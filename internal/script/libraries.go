package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"
)

// Libraries selects which host-exposed library groups a module's Lua state
// may use. It is read once, when the module is constructed.
type Libraries uint32

const (
	LibBase Libraries = 1 << iota
	LibPackage
	LibString
	LibTable
	LibMath
	LibBit32
	LibIO
	LibOS
	LibDebug
	LibController
)

const (
	// LibRecommended is a sandbox-friendly set: no file, process or debug access.
	LibRecommended = LibBase | LibString | LibTable | LibMath | LibBit32 | LibController
	LibAll         = LibBase | LibPackage | LibString | LibTable | LibMath | LibBit32 | LibIO | LibOS | LibDebug | LibController
)

type libraryGroup struct {
	flag   Libraries
	name   string
	global string
	open   lua.Function
}

// Order matters: base must be opened before package, package before the rest.
var libraryGroups = []libraryGroup{
	{LibBase, "base", "_G", lua.BaseOpen},
	{LibPackage, "package", "package", lua.PackageOpen},
	{LibString, "string", "string", lua.StringOpen},
	{LibTable, "table", "table", lua.TableOpen},
	{LibMath, "math", "math", lua.MathOpen},
	{LibBit32, "bit32", "bit32", lua.Bit32Open},
	{LibIO, "io", "io", lua.IOOpen},
	{LibOS, "os", "os", lua.OSOpen},
	{LibDebug, "debug", "debug", lua.DebugOpen},
	{LibController, "controller", "", nil},
}

// Has reports whether every group of mask is enabled.
func (l Libraries) Has(mask Libraries) bool { return l&mask == mask }

// Names lists the enabled groups.
func (l Libraries) Names() []string {
	var names []string
	for _, g := range libraryGroups {
		if l&g.flag != 0 {
			names = append(names, g.name)
		}
	}
	return names
}

func (l Libraries) String() string {
	if l == 0 {
		return "none"
	}
	return strings.Join(l.Names(), "|") + " (" + strconv.FormatUint(uint64(l), 10) + ")"
}

// ParseLibraries parses a decimal mask as accepted by the -l flag.
func ParseLibraries(s string) (Libraries, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid library mask %q: %w", s, err)
	}
	return Libraries(v), nil
}

func openLibraries(l *lua.State, libs Libraries) {
	for _, g := range libraryGroups {
		if g.open == nil || libs&g.flag == 0 {
			continue
		}
		lua.Require(l, g.global, g.open, true)
		l.Pop(1)
	}
}
