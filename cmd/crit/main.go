// Command crit is the CLI front end over internal/service: a thin
// cobra shell that resolves flags/config into a service.Service, dials
// one call per invocation, and renders the result as text or JSON.
package main

func main() {
	Execute()
}
