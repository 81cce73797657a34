// Command davidrt drives the task-submission engine against the simulated
// device.
package main

func main() {
	Execute()
}
