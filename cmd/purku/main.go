// Purku - project decommissioning for AWS organizations.
// Scan. Confirm. Destroy.
package main

func main() {
	Execute()
}
