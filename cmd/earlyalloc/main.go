// Command earlyalloc replays boot-time allocation scenarios against the
// early allocator and reports its accounting.
package main

func main() {
	execute()
}
