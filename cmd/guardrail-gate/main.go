// Command guardrail-gate is the thin CLI surface for the guardrail
// runtime: loading and reporting on a rules directory, and running a
// single tool call through the engine to inspect its explanation.
package main

import "github.com/aegiswall/guardrail/cmd/guardrail-gate/cmd"

func main() {
	cmd.Execute()
}
