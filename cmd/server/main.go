// Command mall-admin runs the mall administration API and its tooling.
package main

func main() {
	Execute()
}
