// Package contract compiles loosely typed task documents into immutable
// validation contracts.
//
// Compilation never panics on malformed input. Every structural problem is
// accumulated as a reason code and any code fails the compilation closed: no
// contract is produced and the caller receives the sorted code list instead.
//
// The same declaration rules run again after a gate run finishes (see
// ValidateDeclarations with PhaseRun), so a contract that was edited between
// compile and run is still held to them.
package contract
