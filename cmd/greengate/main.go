// Command greengate compiles validation contracts and runs checks until they
// pass, stall, or exhaust their iteration budget.
package main

func main() {
	Execute()
}
