// Package targetcast implements the device-and-representation resolution pass of the inference-graph
// compiler ("type_target_cast_pass").
//
// Given a graph whose instructions are each bound to one kernel, and whose arguments carry their current
// type (target, precision, layout), the pass rewrites the graph so that every instruction consumes and produces
// values of the types its kernel declares. Wherever they don't match, it inserts a transfer instruction
// ("io_copy", or "io_copy_once" for weights and other persistable values) between the value and the instruction:
//
//	a -> inst               becomes   a -> io_copy -> a/target_trans -> inst
//	inst -> out             becomes   inst -> out/target_trans_out -> io_copy -> out
//
// A value shared by several consumers is transferred only once per pass invocation.
//
// Example:
//
//	pass := targetcast.New(registry, valueScope)
//	if err := pass.SetValidPlaces(places); err != nil { ... }
//	if err := pass.Apply(g); err != nil {
//		// Compilation must be aborted: the graph may be partially rewritten.
//	}
package targetcast
