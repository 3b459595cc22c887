// Package optypes lists the operation types and argument roles the compiler handles specially.
package optypes

import "github.com/gomlx/targetcast/internal/utils"

// Operation types.
const (
	// IoCopy transfers a value between targets on every execution.
	IoCopy = "io_copy"

	// IoCopyOnce transfers a value only on the first execution: used for weights and other persistable values.
	IoCopyOnce = "io_copy_once"

	While            = "while"
	ConditionalBlock = "conditional_block"
	WriteBack        = "write_back"

	Unique = "unique"
)

// Argument roles of the transfer operations.
const (
	RoleInput      = "Input"
	RoleOut        = "Out"
	RoleInputArray = "InputArray"
	RoleOutArray   = "OutArray"
)

// ControlFlow operations have the types of their operands resolved when their sub-blocks are lowered.
var ControlFlow = utils.SetWith(While, ConditionalBlock, WriteBack)

// IsTransfer returns whether the operation type is one of the transfer (copy) operations.
func IsTransfer(opType string) bool {
	return opType == IoCopy || opType == IoCopyOnce
}

// TransferRoles returns the input and output roles used by a transfer of a tensor or of a tensor list.
func TransferRoles(isTensorList bool) (input, output string) {
	if isTensorList {
		return RoleInputArray, RoleOutArray
	}
	return RoleInput, RoleOut
}
