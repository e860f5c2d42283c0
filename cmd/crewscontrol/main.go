// Command crewscontrol runs crew projects: named units of agent work
// scheduled by their declared dependencies.
package main

func main() {
	Execute()
}
